package engine

// DuplicatesFileKey is the job configuration key naming the duplicate
// relation file.
const DuplicatesFileKey = "duplicates.file"

// Conf is the per-job key/value configuration handed to every worker.
type Conf map[string]string

func (c Conf) Get(key string) string {
	return c[key]
}

// Set stores value under key. Setting on a nil Conf is a no-op.
func (c Conf) Set(key, value string) {
	if c == nil {
		return
	}
	c[key] = value
}
