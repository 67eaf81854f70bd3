// Package schema checks a parsed station document against the fixed
// station template and applies the one auto-correction the validator owns:
// synthesizing missing evaluation sub-scores. Everything else is reported,
// never fixed here.
package schema

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/revalidafacil/stations-backend/internal/station/depth"
)

var requiredTopLevel = []string{
	"idEstacao", "tituloEstacao", "numeroDaEstacao", "especialidade",
	"tempoDuracaoMinutos", "palavrasChave", "nivelDificuldade",
	"instrucoesParticipante", "materiaisDisponiveis", "padraoEsperadoProcedimento",
}

var validEspecialidades = []string{
	"CLÍNICA MÉDICA", "CIRURGIA GERAL", "PEDIATRIA",
	"GINECOLOGIA E OBSTETRÍCIA", "MEDICINA DA FAMÍLIA E COMUNIDADE",
}

const idEstacaoPrefix = "REVALIDA_FACIL_"

// Validate inspects doc and returns a corrected deep copy together with the
// report. The input document is never mutated. Checks accumulate, nothing
// short-circuits, so one report covers every defect found.
func Validate(doc map[string]any) (map[string]any, *Report) {
	rep := NewReport()
	out, _ := deepCopy(doc).(map[string]any)
	if out == nil {
		out = map[string]any{}
	}

	for _, field := range requiredTopLevel {
		if _, ok := out[field]; !ok {
			rep.missingField(field)
		}
	}

	validateInstrucoes(out, rep)
	validatePadrao(out, rep)
	validateFeedback(out, rep)
	validateTypes(out, rep)
	validateEnums(out, rep)
	validateGeneral(out, rep)

	return out, rep
}

func validateInstrucoes(doc map[string]any, rep *Report) {
	instrucoes, ok := asMap(doc["instrucoesParticipante"])
	if !ok {
		return
	}
	for _, field := range []string{"cenarioAtendimento", "descricaoCasoCompleta", "tarefasPrincipais"} {
		if _, present := instrucoes[field]; !present {
			rep.structuralIssue("instrucoesParticipante." + field + " ausente")
		}
	}

	if cenario, ok := asMap(instrucoes["cenarioAtendimento"]); ok {
		for _, field := range []string{"nivelAtencao", "tipoAtendimento", "infraestruturaUnidade"} {
			if _, present := cenario[field]; !present {
				rep.structuralIssue("cenarioAtendimento." + field + " ausente")
			}
		}
	}

	if raw, present := instrucoes["tarefasPrincipais"]; present {
		tarefas, ok := asList(raw)
		if !ok {
			rep.invalidType("tarefasPrincipais deve ser uma lista")
		} else if len(tarefas) < 3 {
			rep.warn(fmt.Sprintf("tarefasPrincipais tem apenas %d itens (recomendado: 3-5)", len(tarefas)))
		}
	}
}

func validatePadrao(doc map[string]any, rep *Report) {
	padrao, ok := asMap(doc["padraoEsperadoProcedimento"])
	if !ok {
		return
	}
	for _, field := range []string{"idChecklistAssociado", "sinteseEstacao"} {
		if _, present := padrao[field]; !present {
			rep.structuralIssue("padraoEsperadoProcedimento." + field + " ausente")
		}
	}

	if raw, present := padrao["pontuacaoTotalEstacao"]; present {
		if total, ok := asNumber(raw); !ok {
			rep.invalidType("pontuacaoTotalEstacao deve ser numérico")
		} else if total <= 0 {
			rep.warn("pontuacaoTotalEstacao deve ser maior que zero")
		}
	}

	itens, found := findItensAvaliacao(padrao)
	if !found {
		if _, present := padrao["sinteseEstacao"]; present {
			rep.structuralIssue("padraoEsperadoProcedimento.sinteseEstacao.itensAvaliacao ausente")
		}
		return
	}

	lista, ok := asList(itens)
	if !ok {
		rep.invalidType("itensAvaliacao deve ser uma lista")
		return
	}
	if len(lista) < 3 {
		rep.warn(fmt.Sprintf("itensAvaliacao tem apenas %d itens (recomendado: 5-8)", len(lista)))
		return
	}
	for i, raw := range lista {
		item, ok := asMap(raw)
		if !ok {
			rep.structuralIssue(fmt.Sprintf("itensAvaliacao[%d] não é um objeto", i))
			continue
		}
		validateItem(item, i, rep)
	}
}

// findItensAvaliacao accepts the list either nested under sinteseEstacao,
// where generation historically placed it, or directly on the rubric.
func findItensAvaliacao(padrao map[string]any) (any, bool) {
	if sintese, ok := asMap(padrao["sinteseEstacao"]); ok {
		if itens, present := sintese["itensAvaliacao"]; present {
			return itens, true
		}
	}
	if itens, present := padrao["itensAvaliacao"]; present {
		return itens, true
	}
	return nil, false
}

var requiredPontuacoes = []string{"adequado", "parcialmenteAdequado", "inadequado"}

func validateItem(item map[string]any, i int, rep *Report) {
	for _, field := range []string{"idItem", "descricaoItem", "pontuacoes"} {
		if _, present := item[field]; !present {
			rep.structuralIssue(fmt.Sprintf("itensAvaliacao[%d].%s ausente", i, field))
		}
	}
	if _, present := item["itemNumeroOficial"]; !present {
		rep.warn(fmt.Sprintf("itensAvaliacao[%d].itemNumeroOficial ausente", i))
	}

	pontuacoes, ok := asMap(item["pontuacoes"])
	if !ok {
		return
	}
	synthesizeScores(pontuacoes, i, rep)
	recheckScores(pontuacoes, i, rep)
	checkScoreSum(pontuacoes, i, rep)
}

// synthesizeScores fills in missing grading tiers. parcialmenteAdequado is
// only synthesized when the item is not binary (adequado above 0.25 points);
// inadequado always defaults to zero; a missing adequado gets the standard
// half-point and drives the binary decision for the tiers after it.
func synthesizeScores(pontuacoes map[string]any, i int, rep *Report) {
	var missing []string
	for _, tier := range requiredPontuacoes {
		if _, present := pontuacoes[tier]; !present {
			missing = append(missing, tier)
		}
	}
	if len(missing) == 0 {
		return
	}

	pontosAdequado := adequadoPontos(pontuacoes)

	for _, tier := range missing {
		switch tier {
		case "adequado":
			pontuacoes["adequado"] = map[string]any{
				"criterio": "Realiza todas as ações esperadas de forma adequada.",
				"pontos":   0.5,
			}
			pontosAdequado = 0.5
			rep.corrected(fmt.Sprintf("Pontuação adequado (0.5pts) adicionada para item %d", i))
			rep.warn(fmt.Sprintf("Pontuação adequado (0.5pts) adicionada para item %d", i))

		case "parcialmenteAdequado":
			if pontosAdequado > 0.25 {
				pontosParcial := math.Round(pontosAdequado/2*100) / 100
				pontuacoes["parcialmenteAdequado"] = map[string]any{
					"criterio": "Realiza parcialmente as ações esperadas.",
					"pontos":   pontosParcial,
				}
				rep.corrected(fmt.Sprintf("Pontuação parcialmenteAdequado (%vpts) adicionada para item %d", pontosParcial, i))
				rep.warn(fmt.Sprintf("Pontuação parcialmenteAdequado (%vpts) adicionada para item %d", pontosParcial, i))
			} else {
				rep.corrected(fmt.Sprintf("Item %d identificado como binário - parcialmenteAdequado não aplicável", i))
				rep.warn(fmt.Sprintf("Item %d é binário (≤0.25pts) - parcialmenteAdequado não aplicável", i))
			}

		case "inadequado":
			pontuacoes["inadequado"] = map[string]any{
				"criterio": "Não realiza as ações esperadas ou realiza de forma inadequada.",
				"pontos":   0.0,
			}
			rep.corrected(fmt.Sprintf("Pontuação inadequado adicionada para item %d", i))
			rep.warn(fmt.Sprintf("Pontuação inadequado adicionada para item %d", i))
		}
	}
}

// recheckScores runs after synthesis and reports any tier still missing. The
// binary decision here reads adequado.pontos directly, with no fallback
// search, so a tier skipped by the binary rule stays unreported while a
// genuinely defective record surfaces as a structural issue.
func recheckScores(pontuacoes map[string]any, i int, rep *Report) {
	for _, tier := range requiredPontuacoes {
		if _, present := pontuacoes[tier]; present {
			continue
		}
		if tier == "parcialmenteAdequado" {
			pontosAdequado := 0.0
			if adequado, ok := asMap(pontuacoes["adequado"]); ok {
				if v, ok := asNumber(adequado["pontos"]); ok {
					pontosAdequado = v
				}
			}
			if pontosAdequado > 0.25 {
				rep.structuralIssue(fmt.Sprintf("itensAvaliacao[%d].pontuacoes.%s ausente", i, tier))
			}
			continue
		}
		rep.structuralIssue(fmt.Sprintf("itensAvaliacao[%d].pontuacoes.%s ausente", i, tier))
	}
}

func checkScoreSum(pontuacoes map[string]any, i int, rep *Report) {
	sum := 0.0
	for _, tier := range requiredPontuacoes {
		m, ok := asMap(pontuacoes[tier])
		if !ok {
			continue
		}
		if v, isNum := asNumber(m["pontos"]); isNum {
			sum += v
		} else if _, present := m["pontos"]; present {
			rep.invalidType(fmt.Sprintf("itensAvaliacao[%d].pontuacoes.%s.pontos deve ser numérico", i, tier))
		}
	}
	if sum > 1.0+1e-9 {
		rep.warn(fmt.Sprintf("itensAvaliacao[%d]: soma das pontuações (%.2f) excede 1.0", i, sum))
	}
}

// adequadoPontos extracts the adequate-tier score, tolerating records where
// the key drifted: the pontos key wins, otherwise the first positive numeric
// value in key order.
func adequadoPontos(pontuacoes map[string]any) float64 {
	adequado, ok := asMap(pontuacoes["adequado"])
	if !ok {
		return 0.0
	}
	if v, isNum := asNumber(adequado["pontos"]); isNum {
		return v
	}
	keys := make([]string, 0, len(adequado))
	for k := range adequado {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v, isNum := asNumber(adequado[k]); isNum && v > 0 {
			return v
		}
	}
	return 0.0
}

func validateFeedback(doc map[string]any, rep *Report) {
	padrao, ok := asMap(doc["padraoEsperadoProcedimento"])
	if !ok {
		return
	}
	feedback, ok := asMap(padrao["feedbackEstacao"])
	if !ok {
		return
	}
	if _, present := feedback["resumoTecnico"]; !present {
		rep.structuralIssue("feedbackEstacao.resumoTecnico ausente")
	}
	if raw, present := feedback["fontes"]; present {
		if _, isList := asList(raw); !isList {
			rep.invalidType("fontes deve ser uma lista")
		}
	}
}

func validateTypes(doc map[string]any, rep *Report) {
	for _, field := range []string{"tempoDuracaoMinutos", "numeroDaEstacao"} {
		if raw, present := doc[field]; present && !isInteger(raw) {
			rep.invalidType(field + " deve ser int")
		}
	}
	if raw, present := doc["palavrasChave"]; present {
		if _, ok := asList(raw); !ok {
			rep.invalidType("palavrasChave deve ser uma lista")
		}
	}
}

func validateEnums(doc map[string]any, rep *Report) {
	if esp, ok := doc["especialidade"].(string); ok {
		known := false
		for _, v := range validEspecialidades {
			if esp == v {
				known = true
				break
			}
		}
		if !known {
			rep.warn(fmt.Sprintf("Especialidade '%s' não está na lista padrão INEP", esp))
		}
	}
	if id, ok := doc["idEstacao"].(string); ok {
		if !strings.HasPrefix(id, idEstacaoPrefix) {
			rep.warn("idEstacao não segue o padrão REVALIDA_FACIL_[ANO]_[SEMESTRE]_EST[NUMERO]_...")
		}
	}
}

func validateGeneral(doc map[string]any, rep *Report) {
	if raw, present := doc["tituloEstacao"]; present {
		titulo, ok := raw.(string)
		if !ok || len(strings.TrimSpace(titulo)) < 10 {
			rep.warn("tituloEstacao muito curto ou inválido")
		}
	}
	if raw, present := doc["palavrasChave"]; present {
		if lista, ok := asList(raw); !ok || len(lista) < 3 {
			rep.warn("palavrasChave deve ter pelo menos 3 termos")
		}
	}
	if tempo, ok := asNumber(doc["tempoDuracaoMinutos"]); ok && isInteger(doc["tempoDuracaoMinutos"]) {
		if tempo < 5 || tempo > 30 {
			rep.warn("tempoDuracaoMinutos fora do intervalo recomendado (5-30 minutos)")
		}
	}
	if materiais, present := doc["materiaisDisponiveis"]; present {
		if d := depth.MaxDepth(materiais); d > 10 {
			rep.warn(fmt.Sprintf("materiaisDisponiveis tem profundidade excessiva: %d níveis", d))
		}
	}
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asList(v any) ([]any, bool) {
	l, ok := v.([]any)
	return l, ok
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// isInteger treats whole-valued floats as integers since every number coming
// out of encoding/json is a float64.
func isInteger(v any) bool {
	switch n := v.(type) {
	case int:
		return true
	case float64:
		return n == math.Trunc(n)
	}
	return false
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}
