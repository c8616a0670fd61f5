package mapper

// Partition maps a product id onto one of numPartitions reduce partitions
// with a 31-multiplier string hash. Equal keys always land together.
func Partition(key string, numPartitions int) int {
	if numPartitions <= 1 {
		return 0
	}

	var hash uint32
	for i := 0; i < len(key); i++ {
		hash = hash*31 + uint32(key[i])
	}
	return int(hash % uint32(numPartitions))
}
