package bootstrap

import (
	"encoding/json"
	"fmt"
	"os"

	"intentbot/internal/domain"
)

// Dataset returns the built-in training examples for the shop domain.
// They are the floor the statistical model starts from; feedback rows
// stack on top during retraining.
func Dataset() []domain.TrainingExample {
	return []domain.TrainingExample{
		{Text: "vorrei ordinare due confezioni di creatina", Intent: domain.IntentOrder},
		{Text: "voglio fare un ordine", Intent: domain.IntentOrder},
		{Text: "voglio 2 anavar", Intent: domain.IntentOrder},
		{Text: "ordino le proteine", Intent: domain.IntentOrder},
		{Text: "vorrei comprare il collagene", Intent: domain.IntentOrder},
		{Text: "prenoto una tisana", Intent: domain.IntentOrder},
		{Text: "confermo l'ordine", Intent: domain.IntentOrder},
		{Text: "procedo con l'acquisto", Intent: domain.IntentOrder},
		{Text: "mi servono 3 flaconi di vitamina c", Intent: domain.IntentOrder},
		{Text: "acquisto lo shampoo", Intent: domain.IntentOrder},

		{Text: "avete la creatina?", Intent: domain.IntentSearch},
		{Text: "cerco un integratore per dormire", Intent: domain.IntentSearch},
		{Text: "quanto costa il collagene?", Intent: domain.IntentSearch},
		{Text: "quanto costano le proteine?", Intent: domain.IntentSearch},
		{Text: "vendete oli essenziali?", Intent: domain.IntentSearch},
		{Text: "è disponibile la crema viso?", Intent: domain.IntentSearch},
		{Text: "mi interessa il miele", Intent: domain.IntentSearch},
		{Text: "sto cercando una tisana rilassante", Intent: domain.IntentSearch},
		{Text: "prezzo del siero?", Intent: domain.IntentSearch},
		{Text: "che vitamine avete?", Intent: domain.IntentSearch},

		{Text: "quanto costa la spedizione?", Intent: domain.IntentFAQ},
		{Text: "quali sono i tempi di consegna?", Intent: domain.IntentFAQ},
		{Text: "che metodi di pagamento accettate?", Intent: domain.IntentFAQ},
		{Text: "c'è un ordine minimo?", Intent: domain.IntentFAQ},
		{Text: "fate sconti per quantità?", Intent: domain.IntentFAQ},
		{Text: "come funziona il reso?", Intent: domain.IntentFAQ},
		{Text: "dove vedo il tracking?", Intent: domain.IntentFAQ},
		{Text: "quando arriva il pacco?", Intent: domain.IntentFAQ},
		{Text: "come si paga?", Intent: domain.IntentFAQ},
		{Text: "posso avere il rimborso?", Intent: domain.IntentFAQ},

		{Text: "mandami la lista", Intent: domain.IntentList},
		{Text: "mostrami il catalogo", Intent: domain.IntentList},
		{Text: "vorrei vedere il listino", Intent: domain.IntentList},
		{Text: "che prodotti avete in catalogo?", Intent: domain.IntentList},
		{Text: "dammi il listino prezzi", Intent: domain.IntentList},
		{Text: "lista", Intent: domain.IntentList},

		{Text: "ciao", Intent: domain.IntentGreeting},
		{Text: "buongiorno", Intent: domain.IntentGreeting},
		{Text: "salve come va", Intent: domain.IntentGreeting},
		{Text: "buonasera", Intent: domain.IntentGreeting},
		{Text: "hey ci sei?", Intent: domain.IntentGreeting},

		{Text: "mi date il numero di telefono?", Intent: domain.IntentContact},
		{Text: "avete whatsapp?", Intent: domain.IntentContact},
		{Text: "come posso contattarvi?", Intent: domain.IntentContact},
		{Text: "qual è la vostra email?", Intent: domain.IntentContact},
		{Text: "siete su telegram?", Intent: domain.IntentContact},
	}
}

type datasetFile struct {
	Conversations []struct {
		Message string `json:"message"`
		Intent  string `json:"intent"`
	} `json:"conversations"`
}

// Load returns the built-in dataset extended with the examples stored
// at path, in the {"conversations": [{"message", "intent"}]} layout. A
// missing file is not an error. Rows with an unknown intent label are
// skipped with a count in the returned error-free result; a malformed
// file is an error.
func Load(path string) ([]domain.TrainingExample, error) {
	examples := Dataset()
	if path == "" {
		return examples, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return examples, nil
		}
		return nil, fmt.Errorf("read bootstrap dataset: %w", err)
	}
	var file datasetFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse bootstrap dataset: %w", err)
	}
	for _, conv := range file.Conversations {
		intent, err := domain.ParseIntent(conv.Intent)
		if err != nil || conv.Message == "" {
			continue
		}
		examples = append(examples, domain.TrainingExample{Text: conv.Message, Intent: intent})
	}
	return examples, nil
}
