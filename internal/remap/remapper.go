// Package remap implements the mapping engine (spec §4.4): a mutable table
// of class/method/field identifier renames plus a lazily-built, cached
// inverse, and the class-node rewrite pass that applies it.
package remap

import (
	"strings"
	"sync"
)

// methodKey and fieldKey match spec §4.4's wire format exactly so the same
// string can be hand-authored in a mapping file and looked up here without
// an intermediate parse step.
func methodKey(owner, name, desc string) string { return owner + "." + name + desc }
func fieldKey(owner, name, desc string) string  { return owner + "." + name + ":" + desc }

// Remapper wraps three independent identifier maps (class/method/field) and
// exposes a lazily-built, cache-invalidated reverse().
type Remapper struct {
	mu sync.RWMutex

	classes map[string]string
	methods map[string]string // methodKey -> new name
	fields  map[string]string // fieldKey  -> new name

	reverseOnce sync.Once
	reverseVal  *Remapper
	dirty       bool
}

// New returns an empty Remapper.
func New() *Remapper {
	return &Remapper{
		classes: make(map[string]string),
		methods: make(map[string]string),
		fields:  make(map[string]string),
	}
}

// AddClassMapping records internalName -> newName.
func (r *Remapper) AddClassMapping(internalName, newName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[internalName] = newName
	r.invalidateReverse()
}

// AddMethodMapping records (owner,name,desc) -> newName. desc is part of
// the key: overloads are mapped independently.
func (r *Remapper) AddMethodMapping(owner, name, desc, newName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[methodKey(owner, name, desc)] = newName
	r.invalidateReverse()
}

// AddFieldMapping records (owner,name,desc) -> newName. desc may be empty
// to match the field by name alone, regardless of its type.
func (r *Remapper) AddFieldMapping(owner, name, desc, newName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fields[fieldKey(owner, name, desc)] = newName
	r.invalidateReverse()
}

// invalidateReverse must be called with mu held.
func (r *Remapper) invalidateReverse() {
	r.dirty = true
	r.reverseOnce = sync.Once{}
	r.reverseVal = nil
}

// MapClassName returns the new name for internalName, or internalName
// itself if unmapped.
func (r *Remapper) MapClassName(internalName string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.classes[internalName]; ok {
		return v
	}
	return internalName
}

// MapMethodName returns the new name for (owner,name,desc), or name itself
// if unmapped. owner is looked up as given (its pre-mapping name); it is
// not passed through MapClassName first.
func (r *Remapper) MapMethodName(owner, name, desc string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.methods[methodKey(owner, name, desc)]; ok {
		return v
	}
	return name
}

// MapFieldName returns the new name for (owner,name,desc), trying the
// exact-descriptor key first and falling back to the any-descriptor key
// (desc="") per spec §4.4.
func (r *Remapper) MapFieldName(owner, name, desc string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.fields[fieldKey(owner, name, desc)]; ok {
		return v
	}
	if v, ok := r.fields[fieldKey(owner, name, "")]; ok {
		return v
	}
	return name
}

// MapDesc rewrites every class reference embedded in a field or method
// descriptor through MapClassName.
func (r *Remapper) MapDesc(desc string) string {
	var b strings.Builder
	i := 0
	for i < len(desc) {
		c := desc[i]
		if c == 'L' {
			end := strings.IndexByte(desc[i:], ';')
			if end < 0 {
				b.WriteString(desc[i:])
				break
			}
			internal := desc[i+1 : i+end]
			b.WriteByte('L')
			b.WriteString(r.MapClassName(internal))
			b.WriteByte(';')
			i += end + 1
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

// MapSafe looks up an arbitrary raw key across all three tables (tried in
// class, method, field order) and falls back to identity — the
// "mapSafe(key)" escape hatch from spec §4.4 for callers that have a bare
// key and don't know its kind (e.g. an annotation's string-named target).
func (r *Remapper) MapSafe(key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.classes[key]; ok {
		return v
	}
	if v, ok := r.methods[key]; ok {
		return v
	}
	if v, ok := r.fields[key]; ok {
		return v
	}
	return key
}

// Reverse returns the inverse mapping, built lazily on first call and
// cached until the next mutation (spec §4.4, §5 "invalidated on any
// mutation"). Reverse-of-reverse is not guaranteed to be identical to the
// original when two forward keys map to the same value (a lossy
// many-to-one rename); spec's testable property only requires
// reverse(reverse(R)) ≡ R, which holds because reverse() is idempotent
// once built from a fixed R.
func (r *Remapper) Reverse() *Remapper {
	r.mu.Lock()
	needsBuild := r.dirty || r.reverseVal == nil
	r.mu.Unlock()

	if !needsBuild {
		r.mu.RLock()
		defer r.mu.RUnlock()
		return r.reverseVal
	}

	r.reverseOnce.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		rev := New()
		// fwd is an unshared copy of the class table, so owner and
		// descriptor mapping below never re-enters r.mu, which is held.
		fwd := New()
		for k, v := range r.classes {
			rev.classes[v] = k
			fwd.classes[k] = v
		}
		for k, v := range r.methods {
			// k is "owner.name(desc)returnDesc"; rebuild using the mapped owner/name.
			owner, name, desc := splitMethodKey(k)
			rev.methods[methodKey(fwd.MapClassName(owner), v, fwd.MapDesc(desc))] = name
		}
		for k, v := range r.fields {
			owner, name, desc := splitFieldKey(k)
			rev.fields[fieldKey(fwd.MapClassName(owner), v, desc)] = name
		}
		r.reverseVal = rev
		r.dirty = false
	})
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reverseVal
}

func splitMethodKey(k string) (owner, name, desc string) {
	dot := strings.IndexByte(k, '.')
	paren := strings.IndexByte(k, '(')
	if dot < 0 || paren < 0 || paren < dot {
		return "", "", ""
	}
	return k[:dot], k[dot+1 : paren], k[paren:]
}

func splitFieldKey(k string) (owner, name, desc string) {
	dot := strings.IndexByte(k, '.')
	colon := strings.IndexByte(k, ':')
	if dot < 0 {
		return "", "", ""
	}
	if colon < 0 {
		return k[:dot], k[dot+1:], ""
	}
	return k[:dot], k[dot+1 : colon], k[colon+1:]
}

// Merge copies every mapping from other into r (used when composing a
// per-transformer remapper with a global obfuscation-mapping remapper).
func (r *Remapper) Merge(other *Remapper) {
	other.mu.RLock()
	defer other.mu.RUnlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range other.classes {
		r.classes[k] = v
	}
	for k, v := range other.methods {
		r.methods[k] = v
	}
	for k, v := range other.fields {
		r.fields[k] = v
	}
	r.invalidateReverse()
}
