package filter

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBloomFilterNoFalseNegatives(t *testing.T) {
	bf := NewBloomFilter(DefaultBloomFilterBits)

	keys := make([][]byte, 0, 500)
	for i := 0; i < 500; i++ {
		keys = append(keys, []byte(fmt.Sprintf("key-%04d", i)))
	}
	for _, key := range keys {
		bf.Add(key)
	}

	// Every added key must report as possibly present.
	for _, key := range keys {
		assert.True(t, bf.MayContain(key), "false negative for %s", key)
	}
}

func TestBloomFilterRejectsMostAbsentKeys(t *testing.T) {
	bf := NewBloomFilter(DefaultBloomFilterBits)
	for i := 0; i < 200; i++ {
		bf.Add([]byte(fmt.Sprintf("present-%d", i)))
	}

	falsePositives := 0
	const probes = 1000
	for i := 0; i < probes; i++ {
		if bf.MayContain([]byte(fmt.Sprintf("absent-%d", i))) {
			falsePositives++
		}
	}
	// Loose bound; with 200 keys in an 8K bitmap the rate is far lower.
	assert.Less(t, falsePositives, probes/10)
}

func TestBloomFilterEmptyContainsNothing(t *testing.T) {
	bf := NewBloomFilter(1024)
	assert.False(t, bf.MayContain([]byte("anything")))
}

func TestBloomFilterDefaultSize(t *testing.T) {
	bf := NewBloomFilter(0)
	bf.Add([]byte("k"))
	assert.True(t, bf.MayContain([]byte("k")))
}
