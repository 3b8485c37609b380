package domain

// Zero overwrites b with zeros so key material does not outlive its use.
func Zero(b []byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
}
