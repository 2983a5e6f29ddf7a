package game

import (
	"fmt"
	"strings"

	"github.com/birdr-pro/quizwire/internal/protocol"
)

// Source supplies the question sequence for a room.
type Source interface {
	// Next produces the question for a sequence number plus the id of the
	// correct species. The question embeds the game reference the clients
	// guard against.
	Next(gameToken string, sequence int) (protocol.Question, int)
	// Species resolves a species id, nil when unknown.
	Species(id int) *protocol.Species
}

// Birds is the built-in species pool for the reference server. A real
// deployment would draw from the media backend instead.
var Birds = []protocol.Species{
	{ID: 1, Name: "Eurasian Wren", NameLatin: "Troglodytes troglodytes"},
	{ID: 2, Name: "Common Blackbird", NameLatin: "Turdus merula"},
	{ID: 3, Name: "European Robin", NameLatin: "Erithacus rubecula"},
	{ID: 4, Name: "Great Tit", NameLatin: "Parus major"},
	{ID: 5, Name: "Eurasian Blue Tit", NameLatin: "Cyanistes caeruleus"},
	{ID: 6, Name: "Common Chaffinch", NameLatin: "Fringilla coelebs"},
	{ID: 7, Name: "Eurasian Blackcap", NameLatin: "Sylvia atricapilla"},
	{ID: 8, Name: "Common Chiffchaff", NameLatin: "Phylloscopus collybita"},
	{ID: 9, Name: "Eurasian Jay", NameLatin: "Garrulus glandarius"},
	{ID: 10, Name: "Common Kingfisher", NameLatin: "Alcedo atthis"},
	{ID: 11, Name: "Northern Lapwing", NameLatin: "Vanellus vanellus"},
	{ID: 12, Name: "Eurasian Oystercatcher", NameLatin: "Haematopus ostralegus"},
}

// BirdSource deals questions deterministically from the Birds pool: the
// correct species for sequence n is Birds[(n-1) % len(Birds)], with the
// following three species as decoys.
type BirdSource struct{}

func (BirdSource) Next(gameToken string, sequence int) (protocol.Question, int) {
	n := len(Birds)
	i := (sequence - 1) % n
	correct := Birds[i]

	options := make([]protocol.Species, 0, 4)
	for k := 0; k < 4; k++ {
		options = append(options, Birds[(i+k)%n])
	}

	q := protocol.Question{
		ID:       sequence,
		Sequence: sequence,
		Game:     &protocol.GameRef{Token: gameToken},
		Options:  options,
		Images: []protocol.MediaRef{{
			URL: fmt.Sprintf("https://media.birdr.pro/species/%s.jpg", slug(correct.NameLatin)),
		}},
	}
	return q, correct.ID
}

func (BirdSource) Species(id int) *protocol.Species {
	for _, sp := range Birds {
		if sp.ID == id {
			s := sp
			return &s
		}
	}
	return nil
}

func slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}
