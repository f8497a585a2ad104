package velograph

import (
	"bytes"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Instance is one node of a model.
type Instance struct {
	// Props holds the node properties, including its identity.
	Props Props
	// RelationProps holds the properties of the relationship the instance
	// was reached through, when it was returned by a relation accessor.
	RelationProps Props

	model *Model
	many  map[string]*HasMany
	one   map[string]*HasOne

	build sync.Once
	value any

	mu        sync.Mutex
	loaded    map[string][]*Instance
	loadedOne map[string]*Instance
}

// newInstance builds an instance with one accessor per relation declared on
// its model.
func newInstance(m *Model, props, rel Props) *Instance {
	inst := &Instance{
		Props:         props,
		RelationProps: rel,
		model:         m,
	}
	for _, r := range m.relations {
		switch r.card {
		case One:
			if inst.one == nil {
				inst.one = make(map[string]*HasOne)
			}
			inst.one[r.name] = &HasOne{rel: r, src: inst}
		default:
			if inst.many == nil {
				inst.many = make(map[string]*HasMany)
			}
			inst.many[r.name] = &HasMany{rel: r, src: inst}
		}
	}
	return inst
}

// Model returns the model of the instance.
func (i *Instance) Model() *Model { return i.model }

// GUID returns the identity of the node.
func (i *Instance) GUID() string { return i.Props.GUID() }

// Many returns the accessor of the Many relation with the given name. An
// unknown name returns an accessor whose operations all fail.
func (i *Instance) Many(name string) *HasMany {
	if h, ok := i.many[name]; ok {
		return h
	}
	return &HasMany{err: i.unknown(name, Many)}
}

// One returns the accessor of the One relation with the given name. An
// unknown name returns an accessor whose operations all fail.
func (i *Instance) One(name string) *HasOne {
	if h, ok := i.one[name]; ok {
		return h
	}
	return &HasOne{err: i.unknown(name, One)}
}

func (i *Instance) unknown(name string, card Cardinality) error {
	if r, ok := i.model.Relation(name); ok {
		return NewValidationError(name, NewConfigError("relation %s.%s is %s, not %s", i.model.label, name, r.card, card))
	}
	return NewValidationError(name, NewConfigError("model %s has no relation %s", i.model.label, name))
}

// Loaded returns the instances loaded for a Many relation by an include
// query.
func (i *Instance) Loaded(name string) ([]*Instance, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if v, ok := i.loaded[name]; ok {
		return v, nil
	}
	return nil, NewNotLoadedError(name)
}

// LoadedOne returns the instance loaded for a One relation by an include
// query. The instance is nil when nothing is linked.
func (i *Instance) LoadedOne(name string) (*Instance, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if v, ok := i.loadedOne[name]; ok {
		return v, nil
	}
	return nil, NewNotLoadedError(name)
}

func (i *Instance) setLoaded(name string, insts []*Instance) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.loaded == nil {
		i.loaded = make(map[string][]*Instance)
	}
	i.loaded[name] = insts
}

func (i *Instance) setLoadedOne(name string, inst *Instance) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.loadedOne == nil {
		i.loadedOne = make(map[string]*Instance)
	}
	i.loadedOne[name] = inst
}

// Value returns the value built by the constructor of the model, or nil
// when the model has none. The value is built once. The constructor may
// read the instance, including its loaded relations, but must not call
// Value.
func (i *Instance) Value() any {
	if i.model.ctor == nil {
		return nil
	}
	i.build.Do(func() { i.value = i.model.ctor(i) })
	return i.value
}

// Decode decodes the node properties into v, a pointer to a struct. Fields
// are matched by their json tag.
//
//	var t struct {
//		GUID  string `json:"guid"`
//		Title string `json:"title"`
//	}
//	err := inst.Decode(&t)
func (i *Instance) Decode(v any) error {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(map[string]any(i.Props)); err != nil {
		return err
	}
	dec := msgpack.NewDecoder(&buf)
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

// String implements fmt.Stringer.
func (i *Instance) String() string {
	return i.model.label + "(" + i.GUID() + ")"
}
