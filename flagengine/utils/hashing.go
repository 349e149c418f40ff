package utils

// bucketForIdentity returns a number in range [0:100) derived from the flag
// key and identity. The hash is a 31-multiplier rolling polynomial over
// "flagKey:identity" taken modulo 100, so the same pair always lands in the
// same bucket across process restarts and across nodes sharing the flag set.
func bucketForIdentity(flagKey, identity string) int {
	var h uint32
	for _, c := range []byte(flagKey + ":" + identity) {
		h = h*31 + uint32(c)
	}
	return int(h % 100)
}

func BucketForIdentity(flagKey, identity string) int {
	return bucketForIdentityFunc(flagKey, identity)
}

var bucketForIdentityFunc = bucketForIdentity

// MockSetBucketForIdentity swaps the bucketing function for tests. A nil
// fn restores the default implementation.
func MockSetBucketForIdentity(fn func(flagKey, identity string) int) {
	if fn == nil {
		bucketForIdentityFunc = bucketForIdentity
		return
	}
	bucketForIdentityFunc = fn
}
