package orderbook

import "github.com/tidwall/btree"

// orderQueue is one side of the active book: a price-time ordered
// sequence of resting orders. Insertion is stable, so orders at the
// same price keep FIFO arrival order.
type orderQueue struct {
	orders []*Order
}

// insert places o before the first strictly worse-priced order, which
// puts it at the back of its own price level.
func (q *orderQueue) insert(o *Order) {
	at := len(q.orders)
	for i, r := range q.orders {
		if o.QueuesBefore(r) {
			at = i
			break
		}
	}
	q.orders = append(q.orders, nil)
	copy(q.orders[at+1:], q.orders[at:])
	q.orders[at] = o
}

// prepend puts o at the very front of the queue, bypassing price-time
// insertion. Rollback only.
func (q *orderQueue) prepend(o *Order) {
	q.orders = append([]*Order{o}, q.orders...)
}

func (q *orderQueue) first() *Order {
	if len(q.orders) == 0 {
		return nil
	}
	return q.orders[0]
}

func (q *orderQueue) removeFirst() {
	if len(q.orders) > 0 {
		q.orders = q.orders[1:]
	}
}

func (q *orderQueue) find(id int64) *Order {
	for _, o := range q.orders {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (q *orderQueue) remove(id int64) bool {
	for i, o := range q.orders {
		if o.ID == id {
			q.orders = append(q.orders[:i], q.orders[i+1:]...)
			return true
		}
	}
	return false
}

func (q *orderQueue) len() int { return len(q.orders) }

// stopQueue stages inactive stop orders for one side, ordered by how
// close their trigger is to firing: buy stops ascending by stop price
// (lowest fires first as the last trade price rises), sell stops
// descending (highest fires first as it falls). Arrival sequence
// breaks ties. Only the head is ever probed for activation.
type stopQueue struct {
	tree *btree.BTreeG[*Order]
}

func newStopQueue(side Side) *stopQueue {
	less := func(a, b *Order) bool {
		if a.StopPrice != b.StopPrice {
			if side == Buy {
				return a.StopPrice < b.StopPrice
			}
			return a.StopPrice > b.StopPrice
		}
		return a.Seq < b.Seq
	}
	return &stopQueue{tree: btree.NewBTreeG(less)}
}

func (q *stopQueue) insert(o *Order) { q.tree.Set(o) }

// head returns the stop order closest to its trigger.
func (q *stopQueue) head() *Order {
	o, ok := q.tree.Min()
	if !ok {
		return nil
	}
	return o
}

func (q *stopQueue) popHead() *Order {
	o, ok := q.tree.PopMin()
	if !ok {
		return nil
	}
	return o
}

func (q *stopQueue) find(id int64) *Order {
	var found *Order
	q.tree.Scan(func(o *Order) bool {
		if o.ID == id {
			found = o
			return false
		}
		return true
	})
	return found
}

func (q *stopQueue) remove(id int64) bool {
	o := q.find(id)
	if o == nil {
		return false
	}
	_, ok := q.tree.Delete(o)
	return ok
}

func (q *stopQueue) len() int { return q.tree.Len() }
