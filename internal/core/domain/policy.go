package domain

import "fmt"

// WhenFull is the configured behavior applied when a buffer stage cannot
// immediately accept a new item.
type WhenFull uint8

const (
	// Block suspends the send until capacity is available.
	Block WhenFull = iota + 1

	// DropNewest reports immediate success but discards the item. Every
	// drop is observable through metrics and logging.
	DropNewest

	// Overflow retries the send against a secondary sender. Overflow
	// chains are singly linked and validated acyclic at construction.
	Overflow
)

func (w WhenFull) String() string {
	switch w {
	case Block:
		return "block"
	case DropNewest:
		return "drop_newest"
	case Overflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// ParseWhenFull maps the configuration spelling of a when-full policy to
// its typed value.
func ParseWhenFull(s string) (WhenFull, error) {
	switch s {
	case "block", "":
		return Block, nil
	case "drop_newest":
		return DropNewest, nil
	case "overflow":
		return Overflow, nil
	default:
		return 0, fmt.Errorf("unknown when_full policy %q", s)
	}
}
