package convert

import (
	"github.com/cespare/xxhash/v2"

	"github.com/ironsheep/labelme-tools-mcp/internal/dataset"
)

// splitBuckets is the resolution of the split hash.
const splitBuckets = 1000

// AssignSplit places an image by hashing its canonical path: the hash modulo
// 1000, as a fraction, is compared against val and then val+test. The result
// depends only on the key, so repeated runs agree.
func AssignSplit(key string, val, test float64) dataset.Split {
	ratio := float64(xxhash.Sum64String(key)%splitBuckets) / splitBuckets
	return splitForRatio(ratio, val, test)
}

func splitForRatio(ratio, val, test float64) dataset.Split {
	switch {
	case ratio < val:
		return dataset.SplitVal
	case ratio < val+test:
		return dataset.SplitTest
	default:
		return dataset.SplitTrain
	}
}
