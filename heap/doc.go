// Package heap is a reference collector host for bridge wrappers.
//
// A Heap keeps the registration order of its wrappers and a root table.
// Each pass traces every wrapper, marks from the roots and finalizes the
// rest:
//
//	h := heap.New()
//	err := h.Run(func(l *heap.Lock) error {
//		w, err := bridge.Wrap(l, conn)
//		if err != nil {
//			return err
//		}
//		conn.Release()
//		_, err = l.Collect()
//		return err
//	})
//
// Roots are root-table entries plus wrappers whose resource is still
// strongly held from outside the collector heap. References that come from
// fields of wrappers in the same strongly connected component are not
// counted, so unreferenced cycles of wrapped resources are finalized and
// then reclaimed by condemning their payloads.
//
// A wrapped child of a finalized parent stays a root until the parent's
// teardown releases the child's field, so it is only finalized by the next
// pass. CollectUntilStable runs passes until nothing changes.
package heap
