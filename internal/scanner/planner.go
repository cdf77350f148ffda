package scanner

// Window is a contiguous inclusive block interval scanned in one step.
type Window struct {
	From uint64
	To   uint64
}

// Width returns the number of blocks in the window.
func (w Window) Width() uint64 {
	return w.To - w.From + 1
}

// PlanWindow computes the next safe, bounded scan window. lastScanned is
// -1 when nothing has been scanned yet (start block zero). The window
// never reaches within confirmations blocks of the chain head, and never
// spans more than chunkLimit blocks. The second return value is false
// when no confirmed new blocks exist; that is a no-op, not an error.
func PlanWindow(lastScanned int64, height, confirmations, chunkLimit uint64) (Window, bool) {
	if confirmations > height {
		return Window{}, false
	}
	safeTo := height - confirmations

	from := lastScanned + 1
	if from < 0 || uint64(from) > safeTo {
		return Window{}, false
	}

	to := uint64(from) + chunkLimit - 1
	if to > safeTo {
		to = safeTo
	}
	return Window{From: uint64(from), To: to}, true
}
