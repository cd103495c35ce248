package engine

import "fmt"

// binder assigns concrete running instances to deprovision entries. It
// holds the flattened, stably sorted instance list for one planning run;
// each instance is handed out at most once, and scanning the sorted list in
// order makes the assignment deterministic: repeated planning over
// unchanged state always selects the same instances.
type binder struct {
	instances []Instance
	consumed  []bool
}

func newBinder(instances []Instance) *binder {
	return &binder{
		instances: instances,
		consumed:  make([]bool, len(instances)),
	}
}

// bind selects the first unconsumed instance matching the entry's service
// and key, on the entry's node (any node when the entry defers placement),
// and assigns its identifier to the entry.
func (b *binder) bind(e *Entry) error {
	for i, inst := range b.instances {
		if b.consumed[i] {
			continue
		}
		if inst.Service != e.Service || inst.Key != e.Key {
			continue
		}
		if e.Node != NodeAny && inst.Node != e.Node {
			continue
		}
		b.consumed[i] = true
		e.InstanceID = inst.ID
		return nil
	}
	return NewValidationError(
		fmt.Sprintf("no running instance of %s (%s) available to deprovision on %s", e.Service, e.Key, e.Node), nil).
		WithCode(ErrCodeInventorySkew).
		WithService(e.Service).
		WithNode(e.Node)
}

// orderEntries turns one (service, node) raw entry list into its safe
// execution order:
//
//  1. Entries are partitioned by the non-image portion of their key, so
//     actions for different shards are never mixed.
//  2. Every deprovision is bound to a concrete instance.
//  3. While fusion is allowed, provision/deprovision pairs collapse into a
//     single in-place reprovision carrying the bound instance, both images
//     and both reasons.
//  4. Remaining pairs are interleaved provision first, which keeps capacity
//     from collapsing to zero or doubling mid-transition.
//  5. Leftover provisions, then leftover deprovisions.
func orderEntries(entries []*Entry, b *binder, fusionAllowed bool) ([]*Entry, error) {
	partitions, order := partitionByIdentity(entries)

	ordered := make([]*Entry, 0, len(entries))
	for _, identity := range order {
		sub, err := orderPartition(partitions[identity], b, fusionAllowed)
		if err != nil {
			return nil, err
		}
		ordered = append(ordered, sub...)
	}
	return ordered, nil
}

// partitionByIdentity groups entries by Key.Identity, preserving input
// order within each partition and first-appearance order across partitions.
func partitionByIdentity(entries []*Entry) (map[ConfigKey][]*Entry, []ConfigKey) {
	partitions := make(map[ConfigKey][]*Entry)
	var order []ConfigKey
	for _, e := range entries {
		id := e.Key.Identity()
		if _, ok := partitions[id]; !ok {
			order = append(order, id)
		}
		partitions[id] = append(partitions[id], e)
	}
	return partitions, order
}

func orderPartition(entries []*Entry, b *binder, fusionAllowed bool) ([]*Entry, error) {
	var provisions, deprovisions []*Entry
	for _, e := range entries {
		switch e.Action {
		case ActionProvision:
			provisions = append(provisions, e)
		case ActionDeprovision:
			deprovisions = append(deprovisions, e)
		default:
			return nil, NewValidationError(
				fmt.Sprintf("unexpected %s entry in raw plan for %s", e.Action, e.Service), nil).
				WithService(e.Service)
		}
	}

	for _, e := range deprovisions {
		if err := b.bind(e); err != nil {
			return nil, err
		}
	}

	ordered := make([]*Entry, 0, len(entries))

	// Fuse one provision with one deprovision while allowed: the new
	// image lands in place on the instance the deprovision had claimed.
	for fusionAllowed && len(provisions) > 0 && len(deprovisions) > 0 {
		prov, dep := provisions[0], deprovisions[0]
		provisions, deprovisions = provisions[1:], deprovisions[1:]
		if prov.Node != dep.Node || prov.Service != dep.Service {
			return nil, NewValidationError("fusion candidates disagree on node or service", nil).
				WithService(prov.Service).
				WithNode(prov.Node)
		}
		ordered = append(ordered, &Entry{
			Node:       prov.Node,
			Service:    prov.Service,
			Key:        prov.Key,
			Action:     ActionReprovision,
			Reason:     prov.Reason,
			OldImage:   dep.Key.Image,
			OldReason:  dep.Reason,
			InstanceID: dep.InstanceID,
		})
	}

	// Stagger what is left: provision before the matching deprovision so
	// a replacement exists before capacity is removed.
	for len(provisions) > 0 && len(deprovisions) > 0 {
		ordered = append(ordered, provisions[0], deprovisions[0])
		provisions, deprovisions = provisions[1:], deprovisions[1:]
	}

	ordered = append(ordered, provisions...)
	ordered = append(ordered, deprovisions...)
	return ordered, nil
}
