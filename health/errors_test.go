package health

import "testing"

func TestSentinelErrors(t *testing.T) {
	for _, err := range []error{ErrCheckFailed, ErrCheckTimeout, ErrCheckerNotFound, ErrOverBudget} {
		if err == nil || err.Error() == "" {
			t.Errorf("sentinel error %v has empty message", err)
		}
	}
}
