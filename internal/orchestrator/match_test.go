package orchestrator

import "testing"

func TestAnswersQuestion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		question   string
		addedText  string
		editedKeys []string
		want       bool
	}{
		{
			name:      "keyword appears in added text",
			question:  "What is the mileage on this car?",
			addedText: "mileage is 42000",
			want:      true,
		},
		{
			name:       "keyword appears in edited metadata key",
			question:   "What is the mileage on this car?",
			editedKeys: []string{"mileage"},
			want:       true,
		},
		{
			name:       "compound metadata key still matches",
			question:   "How many previous owners did it have?",
			editedKeys: []string{"previous_owners"},
			want:       true,
		},
		{
			name:      "unrelated edit does not match",
			question:  "What is the mileage on this car?",
			addedText: "new photos uploaded",
			want:      false,
		},
		{
			name:      "stopwords alone never match",
			question:  "What about this?",
			addedText: "what this that",
			want:      false,
		},
		{
			name:      "short words are not keywords",
			question:  "Is it red?",
			addedText: "red exterior",
			want:      false,
		},
		{
			name:      "case insensitive",
			question:  "Does it have a WARRANTY?",
			addedText: "Includes full warranty until 2027",
			want:      true,
		},
		{
			name:     "empty edit",
			question: "What is the mileage?",
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := answersQuestion(tt.question, tt.addedText, tt.editedKeys)
			if got != tt.want {
				t.Errorf("answersQuestion(%q, %q, %v) = %v, want %v",
					tt.question, tt.addedText, tt.editedKeys, got, tt.want)
			}
		})
	}
}

func TestSignificantWords(t *testing.T) {
	t.Parallel()

	words := significantWords("What is the mileage on this 2019 Civic?")
	want := map[string]bool{"mileage": true, "2019": true, "civic": true}
	if len(words) != len(want) {
		t.Fatalf("unexpected keywords: %v", words)
	}
	for _, w := range words {
		if !want[w] {
			t.Errorf("unexpected keyword %q", w)
		}
	}
}
