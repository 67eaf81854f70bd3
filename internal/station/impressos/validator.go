package impressos

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var idImpressoRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// laudoMarkers are the section headers a radiology/lab report is expected to
// carry. Checked case-insensitively.
var laudoMarkers = []string{"ACHADOS", "DESCRIÇÃO", "CONCLUSÃO", "IMPRESSÃO DIAGNÓSTICA"}

// vitalSigns maps the canonical sign name to the spellings accepted for it in
// section item keys. Abbreviations must match the key exactly so that
// "paciente" does not count as blood pressure.
var vitalSigns = []struct {
	name    string
	spelled string
	sigla   string
}{
	{"pressão arterial", "pressão arterial", "pa"},
	{"frequência cardíaca", "frequência cardíaca", "fc"},
	{"frequência respiratória", "frequência respiratória", "fr"},
	{"temperatura", "temperatura", "tax"},
}

// Result carries everything one validation pass found. Errors make the batch
// invalid; warnings and corrections never do.
type Result struct {
	Valid       bool
	Errors      []string
	Warnings    []string
	Corrections []string
}

func newResult() *Result {
	return &Result{Valid: true, Errors: []string{}, Warnings: []string{}, Corrections: []string{}}
}

func (r *Result) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Valid = false
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Result) correctf(format string, args ...any) {
	r.Corrections = append(r.Corrections, fmt.Sprintf(format, args...))
}

// typeValidators dispatches on the canonical content type. Built once; each
// entry owns the structural rules for its exhibit kind.
var typeValidators = map[ContentType]func(item map[string]any, i int, res *Result){
	TextoSimples:          validateTextoSimples,
	ImagemComTexto:        validateImagemComTexto,
	ListaChaveValorSecoes: validateListaChaveValor,
	SinaisVitais:          validateSinaisVitais,
}

// Validate checks and repairs a list of printed materials. The returned list
// always has the same length and order as the input: an item that is not even
// an object is replaced by a descriptive stub, never dropped.
func Validate(items []any) ([]any, *Result) {
	res := newResult()
	corrected := make([]any, 0, len(items))

	for i, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			res.errorf("Impresso %d: não é um objeto", i+1)
			corrected = append(corrected, map[string]any{
				"tituloImpresso": "Impresso Inválido",
				"conteudo":       map[string]any{"textoDescritivo": fmt.Sprint(raw)},
			})
			continue
		}
		out := cloneMap(item)
		validateItem(out, i, res)
		corrected = append(corrected, out)
	}
	return corrected, res
}

func validateItem(item map[string]any, i int, res *Result) {
	validateRequiredFields(item, i, res)

	rawTipo, _ := item["tipoConteudo"].(string)
	if rawTipo == "" {
		return
	}
	ct, remapped, known := Canonicalize(rawTipo)
	if !known {
		res.errorf("Impresso %d: tipoConteudo '%s' inválido", i+1, rawTipo)
		return
	}
	if remapped {
		item["tipoConteudo"] = string(ct)
		res.correctf("Impresso %d: tipoConteudo '%s' remapeado para '%s'", i+1, rawTipo, ct)
	}

	if raw, present := item["conteudo"]; present {
		if _, ok := raw.(map[string]any); !ok {
			res.errorf("Impresso %d: conteudo deve ser um objeto", i+1)
			return
		}
	}
	typeValidators[ct](item, i, res)
}

func validateRequiredFields(item map[string]any, i int, res *Result) {
	if raw, present := item["idImpresso"]; !present {
		res.errorf("Impresso %d: campo obrigatório 'idImpresso' ausente", i+1)
	} else if id, ok := raw.(string); !ok || !idImpressoRe.MatchString(id) {
		res.errorf("Impresso %d: idImpresso '%v' inválido", i+1, raw)
	}

	if raw, present := item["tituloImpresso"]; !present {
		res.errorf("Impresso %d: campo obrigatório 'tituloImpresso' ausente", i+1)
	} else if titulo, ok := raw.(string); !ok || len(strings.TrimSpace(titulo)) < 5 {
		res.errorf("Impresso %d: tituloImpresso muito curto", i+1)
	}

	if _, present := item["tipoConteudo"]; !present {
		res.errorf("Impresso %d: campo obrigatório 'tipoConteudo' ausente", i+1)
	}
	if _, present := item["conteudo"]; !present {
		res.errorf("Impresso %d: campo obrigatório 'conteudo' ausente", i+1)
	}
}

func validateTextoSimples(item map[string]any, i int, res *Result) {
	conteudo, ok := item["conteudo"].(map[string]any)
	if !ok {
		return
	}
	if _, present := conteudo["textoDescritivo"]; !present {
		res.warnf("Impresso %d: texto_simples sem campo 'textoDescritivo'", i+1)
	}
}

func validateImagemComTexto(item map[string]any, i int, res *Result) {
	conteudo, ok := item["conteudo"].(map[string]any)
	if !ok {
		return
	}
	raw, present := conteudo["laudo"]
	if !present {
		res.errorf("Impresso %d: campo 'laudo' ausente no conteúdo", i+1)
		return
	}
	laudo, ok := raw.(string)
	if !ok {
		res.errorf("Impresso %d: campo 'laudo' deve ser texto", i+1)
		return
	}
	if len([]rune(laudo)) < 50 {
		res.warnf("Impresso %d: laudo com menos de 50 caracteres", i+1)
	}
	if !hasLaudoMarker(laudo) {
		conteudo["laudo"] = "ACHADOS:\n" + laudo + "\n\nCONCLUSÃO:\n[A ser preenchida conforme achados]"
		res.correctf("Impresso %d: laudo sem marcadores estruturais, template ACHADOS/CONCLUSÃO aplicado", i+1)
	}
}

func hasLaudoMarker(laudo string) bool {
	upper := strings.ToUpper(laudo)
	for _, marker := range laudoMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

func validateListaChaveValor(item map[string]any, i int, res *Result) {
	conteudo, ok := item["conteudo"].(map[string]any)
	if !ok {
		return
	}
	raw, present := conteudo["secoes"]
	if !present {
		res.errorf("Impresso %d: campo 'secoes' ausente no conteúdo", i+1)
		return
	}
	secoes, ok := raw.([]any)
	if !ok {
		res.errorf("Impresso %d: campo 'secoes' deve ser uma lista", i+1)
		return
	}
	if len(secoes) == 0 {
		res.errorf("Impresso %d: lista 'secoes' não pode estar vazia", i+1)
		return
	}

	corrigidas := make([]any, 0, len(secoes))
	for j, secao := range secoes {
		switch s := secao.(type) {
		case map[string]any:
			checkSecao(s, i, j, res)
			corrigidas = append(corrigidas, s)
		case string:
			var parsed map[string]any
			if err := json.Unmarshal([]byte(s), &parsed); err != nil {
				res.errorf("Impresso %d: seção %d não é um JSON válido", i+1, j+1)
				corrigidas = append(corrigidas, s)
				continue
			}
			checkSecao(parsed, i, j, res)
			corrigidas = append(corrigidas, parsed)
			res.correctf("Impresso %d: seção %d convertida de string JSON para objeto", i+1, j+1)
		default:
			res.errorf("Impresso %d: seção %d deve ser objeto ou string JSON", i+1, j+1)
			corrigidas = append(corrigidas, secao)
		}
	}
	conteudo["secoes"] = corrigidas

	applyReferenceRanges(corrigidas, i, res)
}

func checkSecao(secao map[string]any, i, j int, res *Result) {
	if _, present := secao["tituloSecao"]; !present {
		res.warnf("Impresso %d: seção %d sem 'tituloSecao'", i+1, j+1)
	}
	if _, present := secao["itens"]; !present {
		res.warnf("Impresso %d: seção %d sem 'itens'", i+1, j+1)
	}
}

// applyReferenceRanges appends the adult reference range to numeric lab
// values that lack one. Purely cosmetic, skipped for unknown analytes.
func applyReferenceRanges(secoes []any, i int, res *Result) {
	for _, raw := range secoes {
		secao, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		itens, ok := secao["itens"].([]any)
		if !ok {
			continue
		}
		for _, rawItem := range itens {
			entry, ok := rawItem.(map[string]any)
			if !ok {
				continue
			}
			chave, _ := entry["chave"].(string)
			valor, _ := entry["valor"].(string)
			if chave == "" || valor == "" || !hasDigit(valor) || hasReferenceRange(valor) {
				continue
			}
			if vr, known := referenceRangeFor(chave); known {
				entry["valor"] = valor + " (VR: " + vr + ")"
				res.correctf("Impresso %d: valor de referência adicionado para '%s'", i+1, chave)
			}
		}
	}
}

func validateSinaisVitais(item map[string]any, i int, res *Result) {
	conteudo, ok := item["conteudo"].(map[string]any)
	if !ok {
		return
	}
	chaves := collectChaves(conteudo)
	for _, sign := range vitalSigns {
		if !signPresent(chaves, sign.spelled, sign.sigla) {
			res.warnf("Impresso %d: sinal vital '%s' ausente", i+1, sign.name)
		}
	}
}

// collectChaves flattens every key name reachable in the vital-signs content:
// top-level keys, section item keys, and item keys in the flat itens form.
func collectChaves(conteudo map[string]any) []string {
	var chaves []string
	for k := range conteudo {
		chaves = append(chaves, k)
	}
	appendItemChaves := func(itens []any) {
		for _, rawItem := range itens {
			if entry, ok := rawItem.(map[string]any); ok {
				if chave, ok := entry["chave"].(string); ok {
					chaves = append(chaves, chave)
				}
			}
		}
	}
	if secoes, ok := conteudo["secoes"].([]any); ok {
		for _, raw := range secoes {
			if secao, ok := raw.(map[string]any); ok {
				if itens, ok := secao["itens"].([]any); ok {
					appendItemChaves(itens)
				}
			}
		}
	}
	if itens, ok := conteudo["itens"].([]any); ok {
		appendItemChaves(itens)
	}
	return chaves
}

func signPresent(chaves []string, spelled, sigla string) bool {
	for _, chave := range chaves {
		normalized := strings.ToLower(strings.TrimSpace(chave))
		if strings.Contains(normalized, spelled) || normalized == sigla {
			return true
		}
	}
	return false
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
