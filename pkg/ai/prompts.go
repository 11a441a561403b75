package ai

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxTitleLength is the hard cap for generated titles, in runes.
const MaxTitleLength = 60

// normalizeLanguage collapses a language tag to one of pt, en, es.
// Anything unrecognized defaults to pt (the primary audience).
func normalizeLanguage(lang string) string {
	switch strings.ToLower(strings.SplitN(lang, "-", 2)[0]) {
	case "en":
		return "en"
	case "es":
		return "es"
	default:
		return "pt"
	}
}

// summaryHeadings are the scaffold section titles per language:
// Summary, Key Points, Actions, Important Details.
var summaryHeadings = map[string][4]string{
	"pt": {"Resumo", "Pontos-Chave", "Ações", "Detalhes Importantes"},
	"en": {"Summary", "Key Points", "Actions", "Important Details"},
	"es": {"Resumen", "Puntos Clave", "Acciones", "Detalles Importantes"},
}

// summaryScaffold returns the markdown section skeleton the model must fill.
func summaryScaffold(lang string) string {
	h := summaryHeadings[normalizeLanguage(lang)]
	return fmt.Sprintf("## 📌 %s\n\n## 🔑 %s\n\n## ✅ %s\n\n## 📋 %s", h[0], h[1], h[2], h[3])
}

func summarySystemPrompt(lang string) string {
	switch normalizeLanguage(lang) {
	case "en":
		return "You are an assistant that writes concise, well-structured summaries of personal capture sessions (notes, voice transcriptions, image descriptions). Answer in English. Use exactly this markdown structure, keeping the headings verbatim:\n\n" + summaryScaffold(lang)
	case "es":
		return "Eres un asistente que escribe resúmenes concisos y bien estructurados de sesiones de captura personales (notas, transcripciones de voz, descripciones de imágenes). Responde en español. Usa exactamente esta estructura markdown, manteniendo los encabezados literalmente:\n\n" + summaryScaffold(lang)
	default:
		return "Você é um assistente que escreve resumos concisos e bem estruturados de sessões de captura pessoais (notas, transcrições de voz, descrições de imagens). Responda em português brasileiro. Use exatamente esta estrutura markdown, mantendo os cabeçalhos literalmente:\n\n" + summaryScaffold(lang)
	}
}

func titleSystemPrompt(lang string) string {
	switch normalizeLanguage(lang) {
	case "en":
		return "Generate a short, descriptive title (max 60 characters) for the following content. Answer in English. Output only the title, without quotes."
	case "es":
		return "Genera un título corto y descriptivo (máximo 60 caracteres) para el siguiente contenido. Responde en español. Devuelve solo el título, sin comillas."
	default:
		return "Gere um título curto e descritivo (máximo 60 caracteres) para o conteúdo a seguir. Responda em português brasileiro. Retorne apenas o título, sem aspas."
	}
}

func imagePrompt(lang string) string {
	switch normalizeLanguage(lang) {
	case "en":
		return "Describe this image in detail in English. Include objects, people, visible text, context, and any relevant information."
	case "es":
		return "Describe esta imagen en detalle en español. Incluye objetos, personas, texto visible, contexto y cualquier información relevante."
	default:
		return "Descreva esta imagem em detalhes em português brasileiro. Inclua objetos, pessoas, texto visível, contexto e qualquer informação relevante."
	}
}

// SummaryFailureMessage is stored in ai_summary when generation fails;
// the session is still marked processed.
func SummaryFailureMessage(lang string, err error) string {
	switch normalizeLanguage(lang) {
	case "en":
		return fmt.Sprintf("Failed to generate summary: %v", err)
	case "es":
		return fmt.Sprintf("Error al generar el resumen: %v", err)
	default:
		return fmt.Sprintf("Falha ao gerar resumo: %v", err)
	}
}

// FallbackTitle derives a title from raw text when generation fails:
// the first 50 characters with an ellipsis, or a localized default when
// there is no text at all.
func FallbackTitle(lang, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		switch normalizeLanguage(lang) {
		case "en":
			return "Voice note"
		default:
			return "Nota de voz"
		}
	}
	runes := []rune(text)
	if len(runes) > 50 {
		return string(runes[:50]) + "..."
	}
	return text
}

// NormalizeTitle strips quotes and whitespace from a generated title and
// enforces the 60-character cap (57 + ellipsis).
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	title = strings.Trim(title, `"'`)
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) <= MaxTitleLength {
		return title
	}
	return string([]rune(title)[:MaxTitleLength-3]) + "…"
}
