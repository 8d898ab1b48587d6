package bind_group_provider

// BufferWrite describes a single GPU buffer write operation targeting a specific binding
// on a BindGroupProvider at a given byte offset. The recorder stages one per uniform or
// storage upload and flushes them to the queue before submission.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  int
	Offset   uint64
	Data     []byte
}

// Size returns the number of bytes written.
func (w BufferWrite) Size() uint64 {
	return uint64(len(w.Data))
}
