package risk

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCircuitBreakerManager(t *testing.T) {
	manager := NewCircuitBreakerManager()

	require.NotNil(t, manager)
	require.NotNil(t, manager.venueA)
	require.NotNil(t, manager.venueB)
	require.NotNil(t, manager.fx)
	require.NotNil(t, manager.database)
	require.NotNil(t, manager.metrics)

	assert.Equal(t, gobreaker.StateClosed, manager.venueA.State())
	assert.Equal(t, gobreaker.StateClosed, manager.venueB.State())
	assert.Equal(t, gobreaker.StateClosed, manager.fx.State())
	assert.Equal(t, gobreaker.StateClosed, manager.database.State())
}

func TestCircuitBreakerManager_VenueA(t *testing.T) {
	manager := NewCircuitBreakerManager()

	t.Run("successful requests keep circuit closed", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			_, err := manager.VenueA().Execute(func() (interface{}, error) {
				return "success", nil
			})
			require.NoError(t, err)
		}
		assert.Equal(t, gobreaker.StateClosed, manager.VenueA().State())
	})

	t.Run("circuit opens after threshold failures", func(t *testing.T) {
		manager := NewCircuitBreakerManager()

		for i := 0; i < 5; i++ {
			manager.VenueA().Execute(func() (interface{}, error) {
				return nil, errors.New("venue a error")
			})
		}

		assert.Equal(t, gobreaker.StateOpen, manager.VenueA().State())

		_, err := manager.VenueA().Execute(func() (interface{}, error) {
			return "should not execute", nil
		})
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	})
}

func TestCircuitBreakerManager_FX(t *testing.T) {
	t.Run("FX circuit opens after 3 failures", func(t *testing.T) {
		manager := NewCircuitBreakerManager()

		for i := 0; i < 3; i++ {
			manager.FX().Execute(func() (interface{}, error) {
				return nil, errors.New("fx provider timeout")
			})
		}

		assert.Equal(t, gobreaker.StateOpen, manager.FX().State())

		_, err := manager.FX().Execute(func() (interface{}, error) {
			return "should not execute", nil
		})
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	})

	t.Run("FX circuit breaker exists independently", func(t *testing.T) {
		mgr := NewCircuitBreakerManager()
		assert.NotNil(t, mgr.FX())
	})
}

func TestCircuitBreakerManager_Database(t *testing.T) {
	t.Run("database circuit opens after 10 failures", func(t *testing.T) {
		manager := NewCircuitBreakerManager()

		for i := 0; i < 10; i++ {
			manager.Database().Execute(func() (interface{}, error) {
				return nil, errors.New("database connection failed")
			})
		}

		assert.Equal(t, gobreaker.StateOpen, manager.Database().State())

		_, err := manager.Database().Execute(func() (interface{}, error) {
			return "should not execute", nil
		})
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	})

	t.Run("database circuit has shortest timeout", func(t *testing.T) {
		manager := NewCircuitBreakerManager()
		assert.NotNil(t, manager.Database())
		assert.Less(t, DBOpenTimeout, VenueOpenTimeout)
		assert.Less(t, DBOpenTimeout, FXOpenTimeout)
	})
}

func TestCircuitBreakerMetrics_RecordRequest(t *testing.T) {
	manager := NewCircuitBreakerManager()
	metrics := manager.Metrics()

	t.Run("record successful request", func(t *testing.T) {
		metrics.RecordRequest("venue_a", true)
	})

	t.Run("record failed request", func(t *testing.T) {
		metrics.RecordRequest("venue_a", false)
	})

	t.Run("record requests for different services", func(t *testing.T) {
		metrics.RecordRequest("venue_a", true)
		metrics.RecordRequest("venue_b", true)
		metrics.RecordRequest("fx", false)
		metrics.RecordRequest("database", false)
	})
}

func TestCircuitBreakerManager_ConcurrentAccess(t *testing.T) {
	manager := NewCircuitBreakerManager()

	t.Run("concurrent requests to same circuit breaker", func(t *testing.T) {
		done := make(chan bool, 10)

		for i := 0; i < 10; i++ {
			go func() {
				defer func() { done <- true }()

				_, err := manager.VenueA().Execute(func() (interface{}, error) {
					time.Sleep(10 * time.Millisecond)
					return "success", nil
				})

				if err != nil && !errors.Is(err, gobreaker.ErrOpenState) {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}

		for i := 0; i < 10; i++ {
			<-done
		}
	})
}

func TestCircuitBreakerManager_MixedSuccessFailure(t *testing.T) {
	manager := NewCircuitBreakerManager()

	t.Run("mixed success and failure stays closed", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			manager.VenueA().Execute(func() (interface{}, error) {
				if i%3 == 0 {
					return nil, errors.New("occasional failure")
				}
				return "success", nil
			})
		}

		assert.Equal(t, gobreaker.StateClosed, manager.VenueA().State())
	})
}

func TestCircuitBreakerManager_DifferentServices(t *testing.T) {
	manager := NewCircuitBreakerManager()

	t.Run("circuit breakers are independent", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			manager.VenueA().Execute(func() (interface{}, error) {
				return nil, errors.New("venue a error")
			})
		}

		assert.Equal(t, gobreaker.StateOpen, manager.VenueA().State())
		assert.Equal(t, gobreaker.StateClosed, manager.VenueB().State())
		assert.Equal(t, gobreaker.StateClosed, manager.FX().State())
		assert.Equal(t, gobreaker.StateClosed, manager.Database().State())

		_, err := manager.VenueB().Execute(func() (interface{}, error) {
			return "success", nil
		})
		assert.NoError(t, err)
	})
}

func TestCircuitBreakerManager_ErrorPropagation(t *testing.T) {
	manager := NewCircuitBreakerManager()

	t.Run("function errors are propagated", func(t *testing.T) {
		expectedErr := errors.New("specific error message")

		_, err := manager.VenueA().Execute(func() (interface{}, error) {
			return nil, expectedErr
		})

		assert.Equal(t, expectedErr, err)
	})

	t.Run("return values are propagated", func(t *testing.T) {
		expectedValue := map[string]interface{}{
			"status": "ok",
			"data":   []int{1, 2, 3},
		}

		result, err := manager.VenueA().Execute(func() (interface{}, error) {
			return expectedValue, nil
		})

		require.NoError(t, err)
		assert.Equal(t, expectedValue, result)
	})
}

func TestCircuitBreakerManager_MetricsSingleton(t *testing.T) {
	t.Run("multiple managers share metrics", func(t *testing.T) {
		manager1 := NewCircuitBreakerManager()
		manager2 := NewCircuitBreakerManager()

		require.NotNil(t, manager1)
		require.NotNil(t, manager2)

		require.NotNil(t, manager1.VenueA())
		require.NotNil(t, manager2.VenueA())

		assert.Same(t, manager1.metrics, manager2.metrics)
	})
}

func TestCircuitBreakerManager_RealWorldScenario(t *testing.T) {
	t.Run("simulate venue API failures and recovery", func(t *testing.T) {
		manager := NewCircuitBreakerManager()

		for i := 0; i < 3; i++ {
			result, err := manager.VenueA().Execute(func() (interface{}, error) {
				return "order_placed", nil
			})
			require.NoError(t, err)
			assert.Equal(t, "order_placed", result)
		}
		assert.Equal(t, gobreaker.StateClosed, manager.VenueA().State())

		for i := 0; i < 5; i++ {
			manager.VenueA().Execute(func() (interface{}, error) {
				return nil, errors.New("venue timeout")
			})
		}
		assert.Equal(t, gobreaker.StateOpen, manager.VenueA().State())

		_, err := manager.VenueA().Execute(func() (interface{}, error) {
			t.Fatal("should not execute while circuit is open")
			return nil, nil
		})
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)

		assert.Equal(t, gobreaker.StateOpen, manager.VenueA().State())
	})
}
