package histcache

import (
	"time"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/histcache/internal/libs/serializer"
	"github.com/hyp3rd/histcache/internal/sentinel"
	"github.com/hyp3rd/histcache/pkg/aggregate"
)

// Snapshot is the serializable form of a collection.
type Snapshot struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Lineage   []string         `json:"lineage"`
	CreatedAt time.Time        `json:"createdAt"`
	Objects   []SnapshotObject `json:"objects"`
}

// SnapshotObject is one aggregate of a snapshot.
type SnapshotObject struct {
	Identifier string           `json:"identifier"`
	Record     aggregate.Record `json:"record"`
}

// Snapshot exports the collection. Objects are ordered by identifier then name.
// The owner must not fill the collection while the snapshot is taken.
func (c *Collection) Snapshot() (*Snapshot, error) {
	keys := c.Keys()

	snap := &Snapshot{
		ID:        c.id,
		Name:      c.name,
		Lineage:   c.Lineage(),
		CreatedAt: time.Now().UTC(),
		Objects:   make([]SnapshotObject, 0, len(keys)),
	}

	for _, key := range keys {
		agg, ok := c.items.Get(key)
		if !ok {
			continue
		}

		rec, err := agg.Record()
		if err != nil {
			return nil, ewrap.Wrapf(err, "snapshot %s", key)
		}

		snap.Objects = append(snap.Objects, SnapshotObject{Identifier: key.Identifier, Record: rec})
	}

	return snap, nil
}

// FromSnapshot rebuilds a collection from a snapshot. The collection takes
// the id and the lineage of the snapshot, so merging it into a collection
// that already folded the same shards is refused.
func FromSnapshot(snap *Snapshot, options ...Option) (*Collection, error) {
	if snap == nil {
		return nil, ewrap.Wrap(sentinel.ErrParamCannotBeEmpty, "snapshot")
	}

	opts := make([]Option, 0, len(options)+2)
	opts = append(opts, options...)
	opts = append(opts, WithID(snap.ID), WithName(snap.Name))

	c := New(opts...)

	for _, id := range snap.Lineage {
		c.lineage[id] = struct{}{}
	}

	for _, obj := range snap.Objects {
		agg, err := aggregate.FromRecord(obj.Record)
		if err != nil {
			return nil, ewrap.Wrapf(err, "snapshot object %s:%s", obj.Identifier, obj.Record.Name)
		}

		key := Key{Identifier: obj.Identifier, Name: obj.Record.Name}
		if !c.items.SetIfAbsent(key, agg) {
			return nil, ewrap.Wrapf(sentinel.ErrInvalidIdentifier, "duplicate snapshot object %s", key)
		}

		c.size.Add(int64(agg.SizeBytes()))
	}

	return c, nil
}

// EncodeSnapshot serializes snap with the named serializer (json, msgpack or cbor).
func EncodeSnapshot(snap *Snapshot, format string) ([]byte, error) {
	ser, err := serializer.New(format)
	if err != nil {
		return nil, err
	}

	data, err := ser.Marshal(snap)
	if err != nil {
		return nil, ewrap.Wrapf(err, "encode snapshot %s as %s", snap.ID, format)
	}

	return data, nil
}

// DecodeSnapshot deserializes a snapshot encoded by EncodeSnapshot.
func DecodeSnapshot(data []byte, format string) (*Snapshot, error) {
	ser, err := serializer.New(format)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{}

	err = ser.Unmarshal(data, snap)
	if err != nil {
		return nil, ewrap.Wrapf(err, "decode %s snapshot", format)
	}

	return snap, nil
}
