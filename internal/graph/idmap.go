package graph

// IDMap assigns dense ids in first-seen order to arbitrary int64 ids.
type IDMap struct {
	toDense   map[int64]int64
	originals []int64
}

// NewIDMap creates an empty mapping.
func NewIDMap() *IDMap {
	return &IDMap{toDense: make(map[int64]int64)}
}

// Add returns the dense id for original, assigning the next one if unseen.
func (m *IDMap) Add(original int64) int64 {
	if dense, ok := m.toDense[original]; ok {
		return dense
	}
	dense := int64(len(m.originals))
	m.toDense[original] = dense
	m.originals = append(m.originals, original)
	return dense
}

// Dense returns the dense id of original.
func (m *IDMap) Dense(original int64) (int64, bool) {
	dense, ok := m.toDense[original]
	return dense, ok
}

// Original returns the external id of a dense id.
func (m *IDMap) Original(dense int64) int64 {
	return m.originals[dense]
}

// Len returns the number of mapped ids.
func (m *IDMap) Len() int64 {
	return int64(len(m.originals))
}
