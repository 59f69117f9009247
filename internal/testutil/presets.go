package testutil

// StandardApiNames lists the names WithStandardApis stores, in byte order.
var StandardApiNames = []string{"admin", "billing", "public"}

// WithStandardApis adds a small set of typical registrations.
func (b *Builder) WithStandardApis() *Builder {
	return b.
		WithApi("admin",
			ClientLimit(5), Protected("/"), Unprotected("/health")).
		WithApi("billing",
			ClientLimit(100), Protected("/invoices", "/payments")).
		WithApi("public")
}
