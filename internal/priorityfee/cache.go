package priorityfee

import (
	"sort"

	"github.com/rickgao/priority-fees/internal/model"
)

// feesMap caches fee levels by market type, then market index.
// Only known market types have a bucket; nothing else is ever inserted.
type feesMap map[string]map[uint16]model.FeeLevels

func newFeesMap() feesMap {
	m := make(feesMap)
	for _, t := range model.KnownMarketTypes() {
		m[t] = make(map[uint16]model.FeeLevels)
	}
	return m
}

// update stores every entry with a known market type and returns how many
// entries were dropped.
func (m feesMap) update(resp model.FeeResponse) (dropped int) {
	for _, fee := range resp {
		bucket, ok := m[fee.MarketType]
		if !ok {
			dropped++
			continue
		}
		bucket[fee.MarketIndex] = fee
	}
	return dropped
}

func (m feesMap) get(marketType string, marketIndex uint16) (model.FeeLevels, bool) {
	bucket, ok := m[marketType]
	if !ok {
		return model.FeeLevels{}, false
	}
	fee, ok := bucket[marketIndex]
	return fee, ok
}

// all returns every cached entry ordered by market type, then index.
func (m feesMap) all() []model.FeeLevels {
	out := make([]model.FeeLevels, 0, m.len())
	for _, bucket := range m {
		for _, fee := range bucket {
			out = append(out, fee)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MarketType != out[j].MarketType {
			return out[i].MarketType < out[j].MarketType
		}
		return out[i].MarketIndex < out[j].MarketIndex
	})
	return out
}

func (m feesMap) len() int {
	n := 0
	for _, bucket := range m {
		n += len(bucket)
	}
	return n
}
