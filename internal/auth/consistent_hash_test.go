package auth

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsistentHashRingStableMapping(t *testing.T) {
	ring := NewConsistentHashRing([]string{"node-a", "node-b", "node-c"}, 50)

	// 同一 key 始终落在同一节点
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("token-%d", i)
		assert.Equal(t, ring.GetNode(key), ring.GetNode(key))
	}
}

func TestConsistentHashRingDefaults(t *testing.T) {
	// 空节点列表不会产生空指针
	ring := NewConsistentHashRing(nil, 0)
	assert.NotEmpty(t, ring.GetNode("any"))

	// 重复添加同一节点不改变映射
	ring2 := NewConsistentHashRing([]string{"node-a"}, 10)
	before := ring2.GetNode("token-x")
	ring2.Add("node-a")
	assert.Equal(t, before, ring2.GetNode("token-x"))
}

func TestConsistentHashRingSpread(t *testing.T) {
	ring := NewConsistentHashRing([]string{"node-a", "node-b", "node-c"}, 100)
	hit := make(map[string]int)
	for i := 0; i < 300; i++ {
		hit[ring.GetNode(fmt.Sprintf("token-%d", i))]++
	}
	// 三个节点都应分到流量
	assert.Len(t, hit, 3)
}
