package order

// DeriveStatus computes the aggregate order status from its item statuses.
//
//  1. every item served            -> completed
//  2. every item ready or served   -> ready
//  3. any item preparing or ready while the order is pending -> in-progress
//  4. otherwise unchanged
//
// The result never moves the order backwards: a derived status ranked below the
// current one is discarded. An order without items keeps its status.
func DeriveStatus(current Status, items []Item) Status {
	if len(items) == 0 {
		return current
	}

	allServed, allReadyOrServed, anyStarted := true, true, false
	for _, it := range items {
		switch it.Status {
		case ItemServed:
		case ItemReady:
			allServed = false
			anyStarted = true
		case ItemPreparing:
			allServed, allReadyOrServed = false, false
			anyStarted = true
		default:
			allServed, allReadyOrServed = false, false
		}
	}

	next := current
	switch {
	case allServed:
		next = StatusCompleted
	case allReadyOrServed:
		next = StatusReady
	case anyStarted && current == StatusPending:
		next = StatusInProgress
	}

	if next.rank() < current.rank() {
		return current
	}
	return next
}
