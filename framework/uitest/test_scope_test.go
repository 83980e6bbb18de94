package uitest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/acronymia/ui-test-harness/framework"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type fakeTimeoutError struct{}

func (fakeTimeoutError) Error() string { return "waited too long" }
func (fakeTimeoutError) Timeout() bool { return true }

func TestTestScopeInheritsConfiguration(t *testing.T) {
	myEnvValue := "hi"
	myCapabilities := framework.Capabilities{"a", "b"}
	config := TestConfiguration{
		Env:          myEnvValue,
		Capabilities: myCapabilities,
	}
	_ = Run(config, func(uit *T) {
		assert.Equal(t, myEnvValue, uit.Env())
		assert.Equal(t, myCapabilities, uit.Capabilities())

		uit.Run("subtest", func(uit1 *T) {
			assert.Equal(t, myEnvValue, uit1.Env())
			assert.Equal(t, myCapabilities, uit1.Capabilities())
		})
	})
}

func TestTestScopeExitsImmediatelyOnFailNow(t *testing.T) {
	executed1 := false
	executed2 := false
	executed3 := false
	result := Run(TestConfiguration{}, func(uit *T) {
		uit.Run("", func(uit *T) {
			executed1 = true
			uit.FailNow()
			executed2 = true
		})
		executed3 = true
	})
	assert.True(t, executed1)
	assert.False(t, executed2)
	assert.True(t, executed3)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "test failed with no failure message", result.Failures[0].Errors[0].Error())
}

func TestTestScopeExitsImmediatelyOnSkip(t *testing.T) {
	executed1 := false
	executed2 := false
	executed3 := false
	_ = Run(TestConfiguration{}, func(uit *T) {
		uit.Run("", func(uit *T) {
			executed1 = true
			uit.Skip()
			executed2 = true
		})
		executed3 = true
	})
	assert.True(t, executed1)
	assert.False(t, executed2)
	assert.True(t, executed3)
}

func TestTestScopePassedResult(t *testing.T) {
	result := Run(TestConfiguration{}, func(uit *T) {
		uit.Run("parent", func(uit0 *T) {
			uit0.Run("subtest1", func(uit1 *T) {
				// this test passes
			})
			uit0.Run("subtest2", func(uit2 *T) {
				// this test passes
			})
		})
	})

	assert.True(t, result.OK())
	assert.Len(t, result.Tests, 4)
	assert.Len(t, result.Failures, 0)

	assert.Equal(t, TestID{"parent", "subtest1"}, result.Tests[0].TestID)
	assert.Equal(t, OutcomePassed, result.Tests[0].Outcome)
	assert.Len(t, result.Tests[0].Errors, 0)

	assert.Equal(t, TestID{"parent", "subtest2"}, result.Tests[1].TestID)
	assert.Equal(t, TestID{"parent"}, result.Tests[2].TestID)
	assert.Nil(t, result.Tests[3].TestID)
	assert.Equal(t, 3, result.Count(OutcomePassed))
}

func TestTestScopeFailedResult(t *testing.T) {
	result := Run(TestConfiguration{}, func(uit *T) {
		uit.Run("parent", func(uit0 *T) {
			uit0.Run("subtest1", func(uit1 *T) {
				// this test passes
			})
			uit0.Run("subtest2", func(uit2 *T) {
				uit2.Errorf("failed because %s", "reasons")
				uit2.Errorf("and failed some more")
			})
			uit0.Errorf("and parent failed")
		})
	})

	assert.False(t, result.OK())
	assert.Len(t, result.Tests, 4)
	assert.Len(t, result.Failures, 2)

	assert.Equal(t, TestID{"parent", "subtest2"}, result.Tests[1].TestID)
	assert.Equal(t, OutcomeFailed, result.Tests[1].Outcome)
	require.Len(t, result.Tests[1].Errors, 2)
	assert.Equal(t, "failed because reasons", result.Tests[1].Errors[0].Error())
	assert.Equal(t, "and failed some more", result.Tests[1].Errors[1].Error())

	assert.Equal(t, TestID{"parent"}, result.Tests[2].TestID)
	require.Len(t, result.Tests[2].Errors, 1)
	assert.Equal(t, "and parent failed", result.Tests[2].Errors[0].Error())

	assert.Nil(t, result.Tests[3].TestID)
	assert.Equal(t, OutcomePassed, result.Tests[3].Outcome)
}

func TestTestScopeSkippedResult(t *testing.T) {
	result := Run(TestConfiguration{}, func(uit *T) {
		uit.Run("parent", func(uit0 *T) {
			uit0.Run("subtest1", func(uit1 *T) {
				uit1.Skip()
			})
			uit0.Run("subtest2", func(uit2 *T) {
				uit2.SkipWithReason("why not")
			})
		})
	})

	assert.True(t, result.OK())
	assert.Len(t, result.Tests, 4)
	assert.Equal(t, 2, result.Count(OutcomeSkipped))
	assert.Equal(t, "why not", result.Tests[1].SkipReason)
}

func TestTestScopeFilter(t *testing.T) {
	filter := FilterFunc(func(id TestID) bool {
		return len(id) == 0 || id[0] == "b"
	})

	result := Run(TestConfiguration{Filter: filter}, func(uit *T) {
		uit.Run("a", func(uit0 *T) {
			uit0.Run("sub1a", func(uit1 *T) {})
			uit0.Run("sub2a", func(uit1 *T) {})
		})
		uit.Run("b", func(uit0 *T) {
			uit0.Run("sub1b", func(uit1 *T) {})
			uit0.Run("sub2b", func(uit1 *T) {})
		})
	})

	assert.True(t, result.OK())
	assert.Len(t, result.Tests, 4)
	assert.Equal(t, TestID{"b", "sub1b"}, result.Tests[0].TestID)
	assert.Equal(t, TestID{"b", "sub2b"}, result.Tests[1].TestID)
	assert.Equal(t, TestID{"b"}, result.Tests[2].TestID)
	assert.Equal(t, TestID(nil), result.Tests[3].TestID)
}

func TestTestScopeCleanupsRunInReverseOrderOnEveryExitPath(t *testing.T) {
	exits := map[string]func(*T){
		"return":  func(*T) {},
		"errorf":  func(uit *T) { uit.Errorf("no") },
		"failnow": func(uit *T) { uit.FailNow() },
		"skip":    func(uit *T) { uit.Skip() },
		"panic":   func(*T) { panic("oops") },
	}
	for name, exit := range exits {
		t.Run(name, func(t *testing.T) {
			var order []int
			_ = Run(TestConfiguration{}, func(uit *T) {
				uit.Run("test", func(uit *T) {
					uit.Defer(func() { order = append(order, 1) })
					uit.Defer(func() { order = append(order, 2) })
					exit(uit)
				})
			})
			assert.Equal(t, []int{2, 1}, order)
		})
	}
}

func TestTestScopeFailingCleanupDoesNotStopOtherCleanups(t *testing.T) {
	ran := false
	result := Run(TestConfiguration{}, func(uit *T) {
		uit.Run("test", func(uit *T) {
			uit.Defer(func() { ran = true })
			uit.Defer(func() { panic("cleanup broke") })
		})
	})
	assert.True(t, ran)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0].Errors[0].Error(), "cleanup broke")
}

func TestTestScopePanicIsReportedAsFailure(t *testing.T) {
	result := Run(TestConfiguration{}, func(uit *T) {
		uit.Run("test", func(uit *T) {
			var m map[string]int
			m["x"] = 1
		})
	})
	require.Len(t, result.Failures, 1)
	assert.Equal(t, OutcomeFailed, result.Failures[0].Outcome)
	assert.Contains(t, result.Failures[0].Errors[0].Error(), "unexpected panic in test")
}

func TestTestScopeFatalKeepsErrorType(t *testing.T) {
	cause := fakeTimeoutError{}
	result := Run(TestConfiguration{}, func(uit *T) {
		uit.Run("slow", func(uit *T) {
			uit.Fatal(fmt.Errorf("step 2: %w", cause))
		})
	})
	require.Len(t, result.Failures, 1)
	var te fakeTimeoutError
	assert.True(t, errors.As(result.Failures[0].Errors[0], &te))
}

func TestTestScopeWaitsThatGiveUpAreFailures(t *testing.T) {
	result := Run(TestConfiguration{TestTimeout: time.Minute}, func(uit *T) {
		uit.Run("assertion timeout", func(uit *T) {
			uit.Fatal(fmt.Errorf("expected player-Bob to be visible: %w", fakeTimeoutError{}))
		})
		uit.Run("deadline error from a wait", func(uit *T) {
			uit.Fatal(fmt.Errorf("navigation: %w", context.DeadlineExceeded))
		})
		uit.Run("broken", func(uit *T) {
			uit.Fatal(errors.New("wrong text"))
		})
	})
	require.Len(t, result.Failures, 3)
	for _, f := range result.Failures {
		assert.Equal(t, OutcomeFailed, f.Outcome, f.TestID.String())
	}
}

func TestTestScopeContext(t *testing.T) {
	var testCtx context.Context
	result := Run(TestConfiguration{TestTimeout: 50 * time.Millisecond}, func(uit *T) {
		uit.Run("waits for deadline", func(uit *T) {
			testCtx = uit.Context()
			_, hasDeadline := testCtx.Deadline()
			assert.True(t, hasDeadline)
			<-testCtx.Done()
			uit.Errorf("gave up")
		})
	})
	assert.Error(t, testCtx.Err())
	require.Len(t, result.Failures, 1)
	assert.Equal(t, OutcomeTimedOut, result.Failures[0].Outcome)
}

func TestTestScopeContextIsCancelledWhenScopeEnds(t *testing.T) {
	var testCtx context.Context
	_ = Run(TestConfiguration{}, func(uit *T) {
		uit.Run("test", func(uit *T) {
			testCtx = uit.Context()
			assert.NoError(t, testCtx.Err())
		})
	})
	assert.ErrorIs(t, testCtx.Err(), context.Canceled)
}

func TestTestScopeArtifacts(t *testing.T) {
	result := Run(TestConfiguration{}, func(uit *T) {
		uit.Run("test", func(uit *T) {
			uit.Defer(func() { uit.AddArtifact("screenshot", "file:///tmp/x.png") })
			uit.Errorf("failed")
		})
	})
	require.Len(t, result.Failures, 1)
	assert.Equal(t, []Artifact{{Name: "screenshot", Ref: "file:///tmp/x.png"}}, result.Failures[0].Artifacts)
}

func TestTestScopeRequireCapability(t *testing.T) {
	result := Run(TestConfiguration{Capabilities: []string{"html"}}, func(uit *T) {
		uit.Run("has it", func(uit *T) { uit.RequireCapability("html") })
		uit.Run("lacks it", func(uit *T) { uit.RequireCapability("screenshot") })
	})
	assert.Equal(t, OutcomePassed, result.Tests[0].Outcome)
	assert.Equal(t, OutcomeSkipped, result.Tests[1].Outcome)
	assert.Contains(t, result.Tests[1].SkipReason, "screenshot")
}

func TestRunParallelRunsConcurrently(t *testing.T) {
	var running, maxRunning int32
	var parentCleanupSawAllDone bool
	var finished int32
	result := Run(TestConfiguration{Parallelism: 3}, func(uit *T) {
		uit.Run("group", func(uit *T) {
			uit.Defer(func() { parentCleanupSawAllDone = atomic.LoadInt32(&finished) == 6 })
			for i := 0; i < 6; i++ {
				uit.RunParallel(fmt.Sprintf("p%d", i), func(uit *T) {
					n := atomic.AddInt32(&running, 1)
					for {
						m := atomic.LoadInt32(&maxRunning)
						if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
							break
						}
					}
					time.Sleep(30 * time.Millisecond)
					atomic.AddInt32(&running, -1)
					atomic.AddInt32(&finished, 1)
				})
			}
		})
	})
	assert.True(t, result.OK())
	assert.Len(t, result.Tests, 8)
	assert.True(t, parentCleanupSawAllDone)
	assert.LessOrEqual(t, atomic.LoadInt32(&maxRunning), int32(3))
	assert.Greater(t, atomic.LoadInt32(&maxRunning), int32(1))
}

func TestRunParallelNestedDoesNotDeadlock(t *testing.T) {
	result := Run(TestConfiguration{Parallelism: 2}, func(uit *T) {
		for i := 0; i < 3; i++ {
			uit.RunParallel(fmt.Sprintf("outer%d", i), func(uit *T) {
				for j := 0; j < 3; j++ {
					uit.RunParallel(fmt.Sprintf("inner%d", j), func(uit *T) {})
				}
			})
		}
	})
	assert.Len(t, result.Tests, 13)
}

func TestRunParallelIsSequentialByDefault(t *testing.T) {
	var order []string
	_ = Run(TestConfiguration{}, func(uit *T) {
		uit.RunParallel("a", func(*T) { order = append(order, "a") })
		order = append(order, "after a")
	})
	assert.Equal(t, []string{"a", "after a"}, order)
}

func TestRunParallelFailuresAreRecorded(t *testing.T) {
	result := Run(TestConfiguration{Parallelism: 4}, func(uit *T) {
		for i := 0; i < 8; i++ {
			i := i
			uit.RunParallel(fmt.Sprintf("t%d", i), func(uit *T) {
				if i%2 == 0 {
					uit.Errorf("even")
				}
			})
		}
	})
	assert.Len(t, result.Failures, 4)
	assert.Equal(t, 4, result.Count(OutcomePassed))
}

type recordingTestLogger struct {
	nullTestLogger
	lock     sync.Mutex
	finished map[string]framework.CapturedOutput
}

func (r *recordingTestLogger) TestFinished(id TestID, _ TestResult, output framework.CapturedOutput) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.finished[id.String()] = output
}

func TestDebugOutputIsCapturedPerScope(t *testing.T) {
	logger := &recordingTestLogger{finished: make(map[string]framework.CapturedOutput)}
	_ = Run(TestConfiguration{TestLogger: logger}, func(uit *T) {
		uit.Run("parent", func(uit *T) {
			uit.Debug("from parent")
			uit.Run("child", func(uit *T) {
				uit.Debug("from child")
			})
		})
	})
	child := logger.finished["parent/child"]
	require.Len(t, child, 2)
	assert.Equal(t, "from parent", child[0].Message)
	assert.Equal(t, "from child", child[1].Message)
	require.Len(t, logger.finished["parent"], 1)
}

// Whatever mix of outcomes a run has, every scope's cleanups run exactly once and the results
// agree with what the bodies did.
func TestRunnerBookkeepingProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		kinds := rapid.SliceOfN(rapid.IntRange(0, 3), 1, 10).Draw(rt, "kinds")
		parallelism := rapid.IntRange(1, 4).Draw(rt, "parallelism")
		var cleanups int32
		result := Run(TestConfiguration{Parallelism: parallelism}, func(uit *T) {
			for i, kind := range kinds {
				kind := kind
				uit.RunParallel(fmt.Sprintf("t%d", i), func(uit *T) {
					uit.Defer(func() { atomic.AddInt32(&cleanups, 1) })
					switch kind {
					case 1:
						uit.Errorf("failed")
					case 2:
						uit.Skip()
					case 3:
						panic("boom")
					}
				})
			}
		})
		expectedFailures := 0
		for _, k := range kinds {
			if k == 1 || k == 3 {
				expectedFailures++
			}
		}
		assert.Equal(rt, int32(len(kinds)), atomic.LoadInt32(&cleanups))
		assert.Len(rt, result.Failures, expectedFailures)
		assert.Len(rt, result.Tests, len(kinds)+1)
	})
}
