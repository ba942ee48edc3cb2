// Package dedup reconciles normalized listing drafts against the canonical
// store: exact re-sightings by content hash, fuzzy duplicates by address
// similarity, everything else inserted as new.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// RoundRent50 rounds a monthly rent down to the nearest $50 so small price
// jitter between sources does not break exact-hash matching.
func RoundRent50(rent int) int {
	return (rent / 50) * 50
}

// HashKey builds the canonical identity string for one unit. The content
// hash must be recomputed whenever any of these inputs changes.
func HashKey(addressNormalized string, rent int, bedrooms int, bathrooms float64) string {
	return fmt.Sprintf("%s|%d|%d|%g", strings.ToLower(strings.TrimSpace(addressNormalized)), RoundRent50(rent), bedrooms, bathrooms)
}

// ContentHash returns the hex SHA-256 of the hash key.
func ContentHash(addressNormalized string, rent int, bedrooms int, bathrooms float64) string {
	sum := sha256.Sum256([]byte(HashKey(addressNormalized, rent, bedrooms, bathrooms)))
	return hex.EncodeToString(sum[:])
}

// Similarity scores two normalized addresses in [0,1]. It is the better of
// token-set Jaccard and character-bigram Dice, so both reordered tokens and
// small spelling drift score high.
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	j := tokenJaccard(a, b)
	d := bigramDice(a, b)
	if j > d {
		return j
	}
	return d
}

func tokenJaccard(a, b string) float64 {
	as := tokenSet(a)
	bs := tokenSet(b)
	if len(as) == 0 || len(bs) == 0 {
		return 0
	}
	inter := 0
	for tok := range as {
		if bs[tok] {
			inter++
		}
	}
	union := len(as) + len(bs) - inter
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}

func bigramDice(a, b string) float64 {
	as := bigrams(a)
	bs := bigrams(b)
	if len(as) == 0 || len(bs) == 0 {
		return 0
	}
	inter := 0
	for g, n := range as {
		if m, ok := bs[g]; ok {
			if m < n {
				inter += m
			} else {
				inter += n
			}
		}
	}
	totalA := 0
	for _, n := range as {
		totalA += n
	}
	totalB := 0
	for _, n := range bs {
		totalB += n
	}
	return 2 * float64(inter) / float64(totalA+totalB)
}

func bigrams(s string) map[string]int {
	grams := make(map[string]int)
	runes := []rune(s)
	for i := 0; i+1 < len(runes); i++ {
		grams[string(runes[i:i+2])]++
	}
	return grams
}
