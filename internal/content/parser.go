package content

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/vocadrill/vocadrill/internal/domain"
)

// Lesson vocab files are plain text: prefixed blocks separated by "---".
//
//	ID: greet-bonjour        (optional; derived from file name when absent)
//	P: bonjour
//	M: hello; good morning
//	E: Bonjour, comment ça va ?
//	E: Bonjour à tous !
//	---
//
// P and M blocks may continue over following lines; each E starts a new
// example.
const (
	idPrefix      = "ID:"
	phrasePrefix  = "P:"
	meaningPrefix = "M:"
	examplePrefix = "E:"
)

type state int

const (
	seeking state = iota
	readingPhrase
	readingMeaning
	readingExample
)

// ParseFile reads a vocab file from the given path and extracts all cards.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all cards. Cards without a
// phrase are dropped; IDs are left exactly as written (the provider
// normalizes and fills in fallbacks).
func Parse(r io.Reader) ([]domain.Card, error) {
	scanner := bufio.NewScanner(r)
	var cards []domain.Card
	var currentCard domain.Card
	var currentBlock []string
	currentState := seeking

	flushBlock := func() {
		if len(currentBlock) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(currentBlock, "\n"))
		switch currentState {
		case readingPhrase:
			currentCard.Phrase = content
		case readingMeaning:
			currentCard.Meaning = content
		case readingExample:
			currentCard.Examples = append(currentCard.Examples, content)
		}
		currentBlock = nil
	}

	finishCard := func() {
		flushBlock()
		if currentCard.Phrase != "" {
			cards = append(cards, currentCard)
		}
		currentCard = domain.Card{}
		currentState = seeking
	}

	stripPrefix := func(line, prefix string) string {
		content := line[len(prefix):]
		return strings.TrimPrefix(content, " ")
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "---":
			finishCard()
		case strings.HasPrefix(line, idPrefix):
			flushBlock()
			currentCard.ID = strings.TrimSpace(stripPrefix(line, idPrefix))
			currentState = seeking
		case strings.HasPrefix(line, phrasePrefix):
			if currentState != seeking { // a new phrase always starts a new card
				finishCard()
			}
			currentState = readingPhrase
			currentBlock = append(currentBlock, stripPrefix(line, phrasePrefix))
		case strings.HasPrefix(line, meaningPrefix):
			flushBlock()
			currentState = readingMeaning
			currentBlock = append(currentBlock, stripPrefix(line, meaningPrefix))
		case strings.HasPrefix(line, examplePrefix):
			flushBlock()
			currentState = readingExample
			currentBlock = append(currentBlock, stripPrefix(line, examplePrefix))
		default:
			if currentState != seeking {
				currentBlock = append(currentBlock, line)
			}
		}
	}

	finishCard() // Finish the very last card in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cards, nil
}
