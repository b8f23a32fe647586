package badger

// Key prefixes for different data types
const (
	documentPrefix  = "doc:"
	partitionPrefix = "docp:"
	indexMetaKey    = "idxmeta:chkpt"
)

// makeDocumentKey generates the primary key of an indexed document.
func makeDocumentKey(key string) []byte {
	return []byte(documentPrefix + key)
}

// makePartitionKey generates a composite key for the partition index.
// Format: prefix:partition\x00key
// The NUL separator keeps one partition from being a prefix of another.
func makePartitionKey(partition, key string) []byte {
	buf := make([]byte, 0, len(partitionPrefix)+len(partition)+1+len(key))
	buf = append(buf, partitionPrefix...)
	buf = append(buf, partition...)
	buf = append(buf, 0)
	buf = append(buf, key...)
	return buf
}

// makePartialPartitionKey generates the prefix shared by all entries of a partition.
func makePartialPartitionKey(partition string) []byte {
	buf := make([]byte, 0, len(partitionPrefix)+len(partition)+1)
	buf = append(buf, partitionPrefix...)
	buf = append(buf, partition...)
	return append(buf, 0)
}

// splitPartitionKey extracts the partition and document key from a partition index key.
func splitPartitionKey(k []byte) (partition, key string, ok bool) {
	rest := k[len(partitionPrefix):]
	for i, b := range rest {
		if b == 0 {
			return string(rest[:i]), string(rest[i+1:]), true
		}
	}
	return "", "", false
}
