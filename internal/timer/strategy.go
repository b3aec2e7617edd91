package timer

import (
	"fmt"
	"strings"
)

// Strategy selects how a timer acquires the console-writer role
type Strategy string

const (
	// StrategyMutex blocks on a plain mutex. Always reports.
	StrategyMutex Strategy = "mutex"

	// StrategyHandshake emulates a mutex with a condition variable and a
	// shared "role available" flag. It is kept as a demonstration of the
	// anti-pattern: a waiter whose budget expires forces the flag back to
	// true while another thread may still hold the role, and its own report
	// is dropped.
	StrategyHandshake Strategy = "handshake"

	// StrategyTimeout waits for the role up to the budget and records the
	// thread in the timed-out registry instead of printing when it expires.
	StrategyTimeout Strategy = "timeout"
)

// Strategies lists every supported strategy
var Strategies = []Strategy{StrategyMutex, StrategyHandshake, StrategyTimeout}

// StrategyNames returns the supported strategy names joined by sep
func StrategyNames(sep string) string {
	names := make([]string, len(Strategies))
	for i, s := range Strategies {
		names[i] = string(s)
	}
	return strings.Join(names, sep)
}

// ParseStrategy parses a strategy name
func ParseStrategy(s string) (Strategy, error) {
	want := Strategy(strings.ToLower(strings.TrimSpace(s)))
	for _, strategy := range Strategies {
		if strategy == want {
			return strategy, nil
		}
	}
	return "", fmt.Errorf("unknown strategy %q (want one of %s)", s, StrategyNames(", "))
}

// UsesBudget reports whether the strategy waits with a timeout
func (s Strategy) UsesBudget() bool {
	return s == StrategyHandshake || s == StrategyTimeout
}
