package usecase

import (
	"fmt"
	"math/rand"
	"sync"
)

// Adjectives for display name generation
var adjectives = []string{
	"Amber", "Bold", "Brave", "Breezy", "Bright", "Calm", "Candid", "Cheery",
	"Clever", "Cosmic", "Cozy", "Crimson", "Curious", "Daring", "Dreamy",
	"Eager", "Electric", "Fearless", "Fuzzy", "Gentle", "Giddy", "Golden",
	"Happy", "Hazel", "Hidden", "Humble", "Jolly", "Keen", "Lively", "Lucky",
	"Mellow", "Merry", "Midnight", "Misty", "Neon", "Nimble", "Peppy",
	"Plucky", "Quiet", "Quirky", "Radiant", "Rapid", "Restless", "Rustic",
	"Sandy", "Silent", "Silver", "Sleepy", "Sly", "Snappy", "Solar",
	"Sparkly", "Spunky", "Stellar", "Sunny", "Swift", "Velvet", "Vivid",
	"Wandering", "Whimsical", "Wild", "Witty", "Zany", "Zesty",
}

// Nouns for display name generation
var nouns = []string{
	"Badger", "Bear", "Beaver", "Bison", "Cheetah", "Comet", "Condor",
	"Coyote", "Crane", "Dolphin", "Dragon", "Eagle", "Falcon", "Fern",
	"Finch", "Firefly", "Fox", "Gazelle", "Gecko", "Hawk", "Hedgehog",
	"Heron", "Ibis", "Jaguar", "Koala", "Lantern", "Lemur", "Lynx",
	"Mango", "Maple", "Marmot", "Meadow", "Meteor", "Mongoose", "Moose",
	"Narwhal", "Nebula", "Ocelot", "Orchid", "Otter", "Owl", "Panda",
	"Panther", "Pebble", "Pelican", "Penguin", "Phoenix", "Pine", "Puffin",
	"Quokka", "Raccoon", "Raven", "River", "Robin", "Sparrow", "Squirrel",
	"Tiger", "Toucan", "Walrus", "Willow", "Wolf", "Wombat", "Wren", "Zebra",
}

// NameGenerator hands out unique "Adjective Noun" display names
type NameGenerator struct {
	mu       sync.RWMutex
	existing map[string]bool
}

// NewNameGenerator creates a new NameGenerator
func NewNameGenerator() *NameGenerator {
	return &NameGenerator{
		existing: make(map[string]bool),
	}
}

// Generate returns a display name not currently in use
func (g *NameGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var name string
	maxAttempts := 100

	for i := 0; i < maxAttempts; i++ {
		adj := adjectives[rand.Intn(len(adjectives))]
		noun := nouns[rand.Intn(len(nouns))]
		name = fmt.Sprintf("%s %s", adj, noun)

		if !g.existing[name] {
			break
		}

		// Add suffix if still duplicate after max attempts
		if i == maxAttempts-1 {
			name = fmt.Sprintf("%s %d", name, rand.Intn(999))
		}
	}

	g.existing[name] = true
	return name
}

// Claim marks a caller-chosen name as in use, for profile renames
func (g *NameGenerator) Claim(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.existing[name] = true
}

// Release removes a name from the active set
func (g *NameGenerator) Release(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.existing, name)
}

// ActiveCount returns the number of active names
func (g *NameGenerator) ActiveCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.existing)
}

// RandomAvatarToken picks an avatar token uniformly from the valid range
func RandomAvatarToken(min, max int) int {
	return min + rand.Intn(max-min+1)
}
