package jsonvalue

// DeepMerge implements spec.md §4.3's MERGE semantics, grounded directly on
// KernelConfigResolver.deepMerge in original_source: Object ⊕ Object merges
// key-wise and recurses; any other combination of kinds — including an
// explicit null or a list on either side — replaces the slot wholesale.
func DeepMerge(original, incoming *Value) *Value {
	if incoming == nil {
		return original
	}
	if original == nil || !original.IsObject() || !incoming.IsObject() {
		return incoming.Clone()
	}
	out := original.Clone()
	for _, key := range incoming.ObjectKeys() {
		incomingChild, _ := incoming.ObjectGet(key)
		existingChild, exists := out.ObjectGet(key)
		if exists {
			out = out.ObjectSet(key, DeepMerge(existingChild, incomingChild))
		} else {
			out = out.ObjectSet(key, incomingChild.Clone())
		}
	}
	return out
}

// ResetLog receives a human-readable note for every no-op/ignored Reset
// pointer, mirroring KernelConfigResolver's LOGGER.atWarn() calls in
// `reset`.
type ResetLog func(pointer, reason string)

// Reset implements spec.md §4.3's RESET semantics for a single pointer,
// grounded on KernelConfigResolver.reset in original_source:
//   - p == "" (whole document) replaces current wholesale with defaults.
//   - p addressing an array element is disallowed; ignored and logged.
//   - if the parent at head(p) is an object:
//     default has a value at p -> key replaced with the default subtree
//     (container or scalar, including an explicit null);
//     default has no value at p -> key removed entirely.
//   - if the parent is missing or a scalar -> no-op, logged.
func Reset(current, defaults *Value, pointer string, logf ResetLog) *Value {
	p := ParsePointer(pointer)
	if len(p) == 0 {
		if defaults == nil {
			return NewObject()
		}
		return defaults.Clone()
	}
	if isArrayIndexToken(p.Last()) {
		if logf != nil {
			logf(pointer, "reset of an array element is not supported")
		}
		return current
	}
	parent, ok := Get(current, p.Head())
	if !ok || (parent != nil && !parent.IsObject() && !parent.IsNull()) {
		if logf != nil {
			logf(pointer, "parent container does not exist or is not an object")
		}
		return current
	}
	if parent != nil && !parent.IsObject() {
		if logf != nil {
			logf(pointer, "parent container is a scalar, not an object")
		}
		return current
	}
	defaultChild, hasDefault := Get(defaults, p)
	if hasDefault {
		return Set(current, p, defaultChild.Clone())
	}
	return Delete(current, p)
}

// ResolveConfiguration implements spec.md §4.3's single-component
// resolution: start from the persisted config if any, else the recipe
// default; apply every RESET pointer in order, then MERGE the incoming
// tree. If there is no update and no prior config, the result is the
// defaults; if no update but a prior config exists, the result is the
// prior config unchanged.
func ResolveConfiguration(persisted, defaults *Value, resetPointers []string, merge *Value, logf ResetLog) *Value {
	var start *Value
	if persisted != nil && !persisted.IsNull() {
		start = persisted.Clone()
	} else {
		start = defaults.Clone()
	}
	if len(resetPointers) == 0 && merge == nil {
		return start
	}
	for _, p := range resetPointers {
		start = Reset(start, defaults, p, logf)
	}
	if merge != nil {
		start = DeepMerge(start, merge)
	}
	return start
}
