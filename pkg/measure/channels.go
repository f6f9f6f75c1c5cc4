package measure

// ResolveChannels validates 1-based channel indices against the image's
// channel count and returns them zero-based, keeping order and duplicates.
// Indices outside [1, sizeC] are reported on diag and dropped.
func ResolveChannels(requested []int, sizeC int, diag *Diagnostics) []int {
	channels := make([]int, 0, len(requested))
	for _, ch := range requested {
		if ch < 1 || ch > sizeC {
			diag.Warnf("Channel index: %d out of range 1 - %d", ch, sizeC)
			continue
		}
		channels = append(channels, ch-1)
	}
	return channels
}
