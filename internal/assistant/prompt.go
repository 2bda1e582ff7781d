package assistant

import "fmt"

func chatPrompt(documentJSON, message string) string {
	return fmt.Sprintf(`Tu es un assistant expert en facturation pour le marché Sénégalais.
VOICI LA FACTURE ACTUELLE (JSON): %s
REQUÊTE UTILISATEUR: %q

INSTRUCTIONS:
1. Analyse la requête pour mettre à jour les données (ajouter/supprimer articles, changer client, modifier taxes, etc.).
2. Retourne la facture MISE À JOUR au format JSON exact.
3. Ajoute un champ "assistantMessage" décrivant brièvement ce que tu as fait en français.`, documentJSON, message)
}

func suggestPrompt(senderName, receiverName string) string {
	return fmt.Sprintf(`Générez 3 articles de facturation professionnelle pour une entreprise nommée %q fournissant des services à %q. Retournez un tableau JSON d'objets avec description (en français), quantity et rate.`,
		senderName, receiverName)
}

type schema map[string]any

func str() schema { return schema{"type": "STRING"} }
func num() schema { return schema{"type": "NUMBER"} }

func object(props schema, required ...string) schema {
	s := schema{"type": "OBJECT", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func array(items schema) schema { return schema{"type": "ARRAY", "items": items} }

var itemSchema = object(schema{
	"id":          str(),
	"description": str(),
	"quantity":    num(),
	"rate":        num(),
})

var chatSchema = object(schema{
	"updatedInvoice": object(schema{
		"invoiceNumber": str(),
		"date":          str(),
		"dueDate":       str(),
		"taxRate":       num(),
		"currency":      str(),
		"notes":         str(),
		"terms":         str(),
		"themeId":       str(),
		"receiver": object(schema{
			"name":    str(),
			"address": str(),
			"email":   str(),
			"phone":   str(),
		}),
		"items": array(itemSchema),
	}),
	"assistantMessage": str(),
})

var suggestSchema = array(object(schema{
	"description": str(),
	"quantity":    num(),
	"rate":        num(),
}, "description", "quantity", "rate"))
