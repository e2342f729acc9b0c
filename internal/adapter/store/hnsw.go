package store

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"molsim/internal/vector"
)

// hnswIndex is a hierarchical navigable small world graph over unit vectors,
// using inner product as the similarity measure (equal to cosine similarity
// on unit vectors; un-normalized vectors must never be inserted).
//
// Inserts take the write lock; searches only the read lock, so concurrent
// queries proceed without blocking each other.
type hnswIndex struct {
	dim            int
	m              int // max neighbors per node on upper layers
	maxM0          int // max neighbors per node on layer 0
	efConstruction int
	efRuntime      int
	ml             float64

	mu       sync.RWMutex
	rng      *rand.Rand
	keys     []string
	vectors  [][]float32
	links    [][][]int32 // node -> layer -> neighbor node ids
	entry    int         // entry point node id, -1 when empty
	maxLevel int
}

func newHNSWIndex(dim, m, efConstruction, efRuntime, initialCap int) (*hnswIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	if m <= 0 {
		m = 8
	}
	if efConstruction < m {
		efConstruction = m
	}
	if efRuntime <= 0 {
		efRuntime = 10
	}
	if initialCap < 0 {
		initialCap = 0
	}
	return &hnswIndex{
		dim:            dim,
		m:              m,
		maxM0:          2 * m,
		efConstruction: efConstruction,
		efRuntime:      efRuntime,
		ml:             1 / math.Log(float64(m)),
		rng:            rand.New(rand.NewSource(rand.Int63())),
		keys:           make([]string, 0, initialCap),
		vectors:        make([][]float32, 0, initialCap),
		links:          make([][][]int32, 0, initialCap),
		entry:          -1,
	}, nil
}

// randomLevel draws a layer from an exponential distribution with
// mL = 1/ln(M), capped so a degenerate draw cannot produce an unbounded
// tower of layers.
func (h *hnswIndex) randomLevel() int {
	u := h.rng.Float64()
	if u == 0 {
		u = math.SmallestNonzeroFloat64
	}
	level := int(math.Floor(-math.Log(u) * h.ml))
	if level > 32 {
		level = 32
	}
	return level
}

func (h *hnswIndex) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.keys)
}

// Insert adds a unit vector under the given key.
func (h *hnswIndex) Insert(key string, vec []float32) error {
	if len(vec) != h.dim {
		return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), h.dim)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	v := make([]float32, h.dim)
	copy(v, vec)

	level := h.randomLevel()
	id := len(h.keys)
	h.keys = append(h.keys, key)
	h.vectors = append(h.vectors, v)
	nodeLinks := make([][]int32, level+1)
	h.links = append(h.links, nodeLinks)

	if h.entry < 0 {
		h.entry = id
		h.maxLevel = level
		return nil
	}

	ep := h.entry
	// Greedy descent through layers above the new node's level.
	for l := h.maxLevel; l > level; l-- {
		ep = h.greedyClosest(v, ep, l)
	}

	// Connect on each shared layer, from the top down.
	startLevel := level
	if startLevel > h.maxLevel {
		startLevel = h.maxLevel
	}
	for l := startLevel; l >= 0; l-- {
		found := h.searchLayer(v, ep, h.efConstruction, l)
		maxM := h.m
		if l == 0 {
			maxM = h.maxM0
		}
		neighbors := found
		if len(neighbors) > maxM {
			neighbors = neighbors[:maxM]
		}
		for _, n := range neighbors {
			h.links[id][l] = append(h.links[id][l], int32(n.id))
			h.links[n.id][l] = append(h.links[n.id][l], int32(id))
			if len(h.links[n.id][l]) > maxM {
				h.shrinkLinks(n.id, l, maxM)
			}
		}
		if len(found) > 0 {
			ep = found[0].id
		}
	}

	if level > h.maxLevel {
		h.entry = id
		h.maxLevel = level
	}
	return nil
}

// Search returns the top-k keys by similarity to query, in non-increasing
// score order. The candidate list size is max(efRuntime, k).
func (h *hnswIndex) Search(query []float32, k int) ([]hnswResult, error) {
	if len(query) != h.dim {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), h.dim)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if k <= 0 || h.entry < 0 {
		return nil, nil
	}

	ep := h.entry
	for l := h.maxLevel; l > 0; l-- {
		ep = h.greedyClosest(query, ep, l)
	}

	ef := h.efRuntime
	if ef < k {
		ef = k
	}
	found := h.searchLayer(query, ep, ef, 0)
	if len(found) > k {
		found = found[:k]
	}

	out := make([]hnswResult, len(found))
	for i, n := range found {
		out[i] = hnswResult{Key: h.keys[n.id], Score: n.score}
	}
	return out, nil
}

type hnswResult struct {
	Key   string
	Score float64
}

type scoredNode struct {
	id    int
	score float64
}

// greedyClosest walks a layer greedily toward the most similar node.
func (h *hnswIndex) greedyClosest(q []float32, ep, level int) int {
	cur := ep
	curScore := vector.InnerProduct(q, h.vectors[cur])
	for {
		improved := false
		for _, nb := range h.linksAt(cur, level) {
			if s := vector.InnerProduct(q, h.vectors[nb]); s > curScore {
				cur, curScore = int(nb), s
				improved = true
			}
		}
		if !improved {
			return cur
		}
	}
}

// searchLayer runs an ef-bounded best-first search on one layer and returns
// up to ef nodes sorted by non-increasing similarity.
func (h *hnswIndex) searchLayer(q []float32, ep, ef, level int) []scoredNode {
	visited := make(map[int]struct{}, ef*4)
	visited[ep] = struct{}{}

	epScore := vector.InnerProduct(q, h.vectors[ep])
	candidates := &nodeHeap{items: []scoredNode{{ep, epScore}}, min: false}
	results := &nodeHeap{items: []scoredNode{{ep, epScore}}, min: true}

	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(scoredNode)
		if results.Len() >= ef && c.score < results.items[0].score {
			break
		}
		for _, raw := range h.linksAt(c.id, level) {
			nb := int(raw)
			if _, seen := visited[nb]; seen {
				continue
			}
			visited[nb] = struct{}{}
			s := vector.InnerProduct(q, h.vectors[nb])
			if results.Len() < ef || s > results.items[0].score {
				heap.Push(candidates, scoredNode{nb, s})
				heap.Push(results, scoredNode{nb, s})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]scoredNode, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(scoredNode)
	}
	return out
}

// shrinkLinks trims a node's neighbor list on one layer to the maxM most
// similar neighbors.
func (h *hnswIndex) shrinkLinks(id, level, maxM int) {
	nbs := h.links[id][level]
	v := h.vectors[id]
	scored := make([]scoredNode, len(nbs))
	for i, nb := range nbs {
		scored[i] = scoredNode{int(nb), vector.InnerProduct(v, h.vectors[nb])}
	}
	keep := &nodeHeap{items: nil, min: true}
	for _, s := range scored {
		heap.Push(keep, s)
		if keep.Len() > maxM {
			heap.Pop(keep)
		}
	}
	trimmed := make([]int32, keep.Len())
	for i := len(trimmed) - 1; i >= 0; i-- {
		trimmed[i] = int32(heap.Pop(keep).(scoredNode).id)
	}
	h.links[id][level] = trimmed
}

func (h *hnswIndex) linksAt(id, level int) []int32 {
	if level >= len(h.links[id]) {
		return nil
	}
	return h.links[id][level]
}

// nodeHeap is a heap of scoredNodes; min controls whether the root holds the
// lowest (result eviction) or highest (candidate expansion) score.
type nodeHeap struct {
	items []scoredNode
	min   bool
}

func (h *nodeHeap) Len() int { return len(h.items) }

func (h *nodeHeap) Less(i, j int) bool {
	if h.min {
		return h.items[i].score < h.items[j].score
	}
	return h.items[i].score > h.items[j].score
}

func (h *nodeHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *nodeHeap) Push(x any) { h.items = append(h.items, x.(scoredNode)) }

func (h *nodeHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
