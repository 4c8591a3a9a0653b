package workload

// DescriptorBuilder builds descriptors with a fluent API.
type DescriptorBuilder struct {
	desc Descriptor
}

// NewDescriptorBuilder creates a builder seeded with DefaultDescriptor.
func NewDescriptorBuilder() *DescriptorBuilder {
	return &DescriptorBuilder{desc: DefaultDescriptor()}
}

// WithDims sets the matrix dimensions.
func (b *DescriptorBuilder) WithDims(m, k, n int) *DescriptorBuilder {
	b.desc.M, b.desc.K, b.desc.N = m, k, n
	return b
}

// WithPrecision sets the operand precision.
func (b *DescriptorBuilder) WithPrecision(p Precision) *DescriptorBuilder {
	b.desc.Precision = p
	return b
}

// WithLayout sets the operand arrangement.
func (b *DescriptorBuilder) WithLayout(l Layout) *DescriptorBuilder {
	b.desc.Layout = l
	return b
}

// Build returns the configured descriptor.
func (b *DescriptorBuilder) Build() Descriptor {
	return b.desc
}
