package engine

// batchOp is one staged write. Mirrors the teacher's WriteBatch pending-
// write record, generalized to name a column family.
type batchOp struct {
	cf       string
	key      []byte
	value    []byte
	isDelete bool
}

// Batch stages writes across one or more column families for atomic
// commit. A command that must update both a meta record and a subentry
// (e.g. HSet) stages both ops into one Batch so a crash never leaves one
// written without the other.
type Batch struct {
	db  *DB
	ops []batchOp
}

// NewBatch starts a new staged write. Safe for a single goroutine; a
// Batch is not reusable after Commit.
func (db *DB) NewBatch() *Batch {
	return &Batch{db: db}
}

func (b *Batch) Put(cfName string, key, value []byte) {
	b.ops = append(b.ops, batchOp{cf: cfName, key: key, value: value})
}

func (b *Batch) Delete(cfName string, key []byte) {
	b.ops = append(b.ops, batchOp{cf: cfName, key: key, isDelete: true})
}

// Commit applies every staged op durably (log append) and then to each
// CF's in-memory index, holding the DB's single write mutex for the
// whole call so the batch is atomic with respect to any concurrent
// Commit and any concurrent NewSnapshot. Compaction never observes a
// partially-applied batch because it only ever reads each CF's live
// tree, which this function mutates only after every log append in the
// batch has succeeded.
func (b *Batch) Commit() error {
	if len(b.ops) == 0 {
		return nil
	}

	b.db.mu.Lock()
	defer b.db.mu.Unlock()

	cfsTouched := make(map[string]*cf, len(b.ops))
	for _, op := range b.ops {
		c, err := b.db.cfOrErr(op.cf)
		if err != nil {
			return err
		}
		cfsTouched[op.cf] = c
		if err := c.log.append(op.key, op.value, op.isDelete); err != nil {
			return err
		}
	}
	for _, c := range cfsTouched {
		if err := c.log.sync(); err != nil {
			return err
		}
	}

	for _, op := range b.ops {
		c := cfsTouched[op.cf]
		c.mu.Lock()
		if op.isDelete {
			c.tree.Delete(newProbe(op.key))
		} else {
			c.tree.ReplaceOrInsert(&kv{key: op.key, value: op.value})
		}
		c.mu.Unlock()
	}
	return nil
}
