package utils

func Any(args []bool) bool {
	for _, a := range args {
		if a {
			return true
		}
	}
	return false
}
