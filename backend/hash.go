package main

// mixKey spreads a board key over the full 64-bit range before it is used
// as a table index. Board keys are position+mask sums and cluster in the
// low bits; splitmix64 finalization fixes that.
func mixKey(v uint64) uint64 {
	v += 0x9e3779b97f4a7c15
	v = (v ^ (v >> 30)) * 0xbf58476d1ce4e5b9
	v = (v ^ (v >> 27)) * 0x94d049bb133111eb
	return v ^ (v >> 31)
}
