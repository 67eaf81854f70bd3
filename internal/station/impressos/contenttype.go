// Package impressos validates and repairs the printed materials (exhibits)
// carried by a station: lab reports, imaging reports, vital-sign charts.
// Items are corrected in order, never dropped, so proctors always see the
// exhibits in authored order.
package impressos

// ContentType is the canonical tag of a printed material.
type ContentType string

const (
	TextoSimples          ContentType = "texto_simples"
	ImagemComTexto        ContentType = "imagem_com_texto"
	ListaChaveValorSecoes ContentType = "lista_chave_valor_secoes"
	SinaisVitais          ContentType = "sinais_vitais"
)

// legacyTypes maps tags older generations emitted to their canonical form.
var legacyTypes = map[string]ContentType{
	"imagemComLaudo": ImagemComTexto,
	"tabela":         ListaChaveValorSecoes,
	"textosimples":   TextoSimples,
	"imagemComTexto": ImagemComTexto,
}

var canonicalTypes = map[ContentType]bool{
	TextoSimples:          true,
	ImagemComTexto:        true,
	ListaChaveValorSecoes: true,
	SinaisVitais:          true,
}

// Canonicalize resolves a raw tipoConteudo value. remapped reports that a
// legacy tag was rewritten; known is false when the value has no canonical
// form and no remap, which callers treat as a hard error.
func Canonicalize(raw string) (ct ContentType, remapped, known bool) {
	if canonicalTypes[ContentType(raw)] {
		return ContentType(raw), false, true
	}
	if mapped, ok := legacyTypes[raw]; ok {
		return mapped, true, true
	}
	return "", false, false
}
