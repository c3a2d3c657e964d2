package base

import "time"

// NextReconnectDelay returns the wait after the given number of consecutive
// failures: min(initial * 2^(failures-1), max). The first wait equals initial.
func NextReconnectDelay(initial, maxDelay time.Duration, failures int) time.Duration {
	if initial <= 0 {
		return 0
	}
	if maxDelay < initial {
		maxDelay = initial
	}

	delay := initial
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	return delay
}
