// Package pipeline sequences the full recovery chain for one generated
// station: extract a JSON candidate from raw model output, repair it, check
// it against the station template, sanitize nesting depth and validate the
// printed materials. Process never fails; at worst it hands back a stub
// document flagged for human review.
package pipeline

import (
	"context"
	"encoding/json"

	"github.com/revalidafacil/stations-backend/internal/logger"
	"github.com/revalidafacil/stations-backend/internal/station/depth"
	"github.com/revalidafacil/stations-backend/internal/station/impressos"
	"github.com/revalidafacil/stations-backend/internal/station/jsonrepair"
	"github.com/revalidafacil/stations-backend/internal/station/schema"
)

// Corrector is the model-based last resort for JSON the deterministic chain
// cannot fix. Implementations own their prompt, timeout and cancellation.
type Corrector interface {
	CorrectJSON(ctx context.Context, broken string) (string, error)
}

type Pipeline struct {
	log       *logger.Logger
	corrector Corrector
	maxDepth  int
}

// New builds a pipeline. corrector may be nil, in which case exhaustion of
// the deterministic strategies goes straight to the stub document.
func New(log *logger.Logger, corrector Corrector) *Pipeline {
	return &Pipeline{log: log, corrector: corrector, maxDepth: depth.DefaultMaxDepth}
}

// Process runs the whole chain over raw model output and returns the
// corrected document plus the validation report. It never returns an error:
// syntactic failure past every strategy yields a stub document with the
// report carrying the trail.
func (p *Pipeline) Process(ctx context.Context, raw string) (map[string]any, *schema.Report) {
	candidate := jsonrepair.Extract(raw)

	doc, ok := p.recoverDocument(ctx, candidate)
	if !ok {
		p.log.Error("JSON irrecuperável, devolvendo documento stub", "preview", preview(candidate))
		rep := schema.NewReport()
		rep.IsValid = false
		rep.StructuralIssues = append(rep.StructuralIssues, "JSON irrecuperável após todas as estratégias de correção")
		return stubDocument(candidate), rep
	}

	doc, rep := schema.Validate(doc)
	p.sanitizeMateriais(doc)

	if materiais, ok := doc["materiaisDisponiveis"].(map[string]any); ok {
		if items, ok := materiais["impressos"].([]any); ok && len(items) > 0 {
			corrected, res := impressos.Validate(items)
			materiais["impressos"] = corrected
			mergeImpressos(rep, res)
		}
	}

	p.finalDepthPass(doc)
	annotate(doc, rep)
	return doc, rep
}

// recoverDocument walks the repair ladder: parse as-is, textual sanitation,
// structural repair, then one model correction call. Each rung restarts from
// the extracted candidate so a misfiring heuristic cannot poison the next.
func (p *Pipeline) recoverDocument(ctx context.Context, candidate string) (map[string]any, bool) {
	if doc, ok := parseObject(candidate); ok {
		return doc, true
	}
	p.log.Warn("parse inicial falhou, aplicando sanitização textual", "preview", preview(candidate))

	if doc, ok := parseObject(jsonrepair.Sanitize(candidate)); ok {
		p.log.Info("JSON recuperado por sanitização textual")
		return doc, true
	}

	if repaired, err := jsonrepair.Repair(candidate); err == nil {
		if doc, ok := parseObject(repaired); ok {
			p.log.Info("JSON recuperado por reparo estrutural")
			return doc, true
		}
	}

	if p.corrector == nil || candidate == "" {
		return nil, false
	}
	p.log.Warn("estratégias determinísticas esgotadas, acionando correção via modelo")
	corrected, err := p.corrector.CorrectJSON(ctx, candidate)
	if err != nil {
		p.log.Error("correção via modelo falhou", "error", err)
		return nil, false
	}
	if doc, ok := parseObject(jsonrepair.Extract(corrected)); ok {
		p.log.Info("JSON recuperado por correção via modelo")
		return doc, true
	}
	return nil, false
}

// sanitizeMateriais normalizes the materiaisDisponiveis block: verbal
// information entries become flat two-field records, the impressos and
// perguntas lists are guaranteed to exist, and actor questions are flattened
// to depth one.
func (p *Pipeline) sanitizeMateriais(doc map[string]any) {
	materiais, ok := doc["materiaisDisponiveis"].(map[string]any)
	if !ok {
		materiais = map[string]any{}
		doc["materiaisDisponiveis"] = materiais
	}
	materiais["informacoesVerbaisSimulado"] = flattenInformacoesVerbais(materiais["informacoesVerbaisSimulado"])
	if _, isList := materiais["impressos"].([]any); !isList {
		materiais["impressos"] = []any{}
	}
	if perguntas, isList := materiais["perguntasAtorSimulado"].([]any); isList {
		materiais["perguntasAtorSimulado"] = depth.Sanitize(perguntas, 1)
	} else {
		materiais["perguntasAtorSimulado"] = []any{}
	}
}

// flattenInformacoesVerbais forces every entry into the flat
// {contextoOuPerguntaChave, informacao} shape. Nested informacao values are
// stringified, bare strings become a generic entry, anything else is dropped.
func flattenInformacoesVerbais(v any) []any {
	list, ok := v.([]any)
	if !ok {
		return []any{}
	}
	out := make([]any, 0, len(list))
	for _, item := range list {
		switch t := item.(type) {
		case map[string]any:
			contexto, hasContexto := t["contextoOuPerguntaChave"].(string)
			if !hasContexto {
				continue
			}
			informacao := t["informacao"]
			switch informacao.(type) {
			case map[string]any, []any:
				informacao = depth.Stringify(informacao)
			}
			switch info := informacao.(type) {
			case string:
				out = append(out, map[string]any{"contextoOuPerguntaChave": contexto, "informacao": info})
			case nil:
				out = append(out, map[string]any{"contextoOuPerguntaChave": contexto, "informacao": ""})
			}
		case string:
			out = append(out, map[string]any{"contextoOuPerguntaChave": "Informação Geral", "informacao": t})
		}
	}
	return out
}

// finalDepthPass runs last so repairs made during printed-material
// validation cannot reintroduce nesting beyond the storage ceiling.
func (p *Pipeline) finalDepthPass(doc map[string]any) {
	materiais, ok := doc["materiaisDisponiveis"].(map[string]any)
	if !ok {
		return
	}
	if items, ok := materiais["impressos"].([]any); ok {
		for _, raw := range items {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if conteudo, ok := item["conteudo"].(map[string]any); ok {
				item["conteudo"] = depth.Sanitize(conteudo, p.maxDepth)
			}
		}
	}
	if perguntas, ok := materiais["perguntasAtorSimulado"].([]any); ok {
		materiais["perguntasAtorSimulado"] = depth.Sanitize(perguntas, 1)
	}
}

func mergeImpressos(rep *schema.Report, res *impressos.Result) {
	rep.StructuralIssues = append(rep.StructuralIssues, res.Errors...)
	rep.Warnings = append(rep.Warnings, res.Warnings...)
	rep.CorrectionsApplied = append(rep.CorrectionsApplied, res.Corrections...)
	if !res.Valid {
		rep.IsValid = false
	}
}

// annotate attaches the unresolved defect trail to the document itself so a
// degraded station stays reviewable after storage.
func annotate(doc map[string]any, rep *schema.Report) {
	if !rep.IsValid {
		issues := make([]any, 0, len(rep.MissingRequiredFields)+len(rep.InvalidFieldTypes)+len(rep.StructuralIssues))
		for _, s := range rep.MissingRequiredFields {
			issues = append(issues, "campo obrigatório ausente: "+s)
		}
		for _, s := range rep.InvalidFieldTypes {
			issues = append(issues, s)
		}
		for _, s := range rep.StructuralIssues {
			issues = append(issues, s)
		}
		doc["_validation_issues"] = issues
	}
	if len(rep.Warnings) > 0 {
		warnings := make([]any, 0, len(rep.Warnings))
		for _, w := range rep.Warnings {
			warnings = append(warnings, w)
		}
		doc["_validation_warnings"] = warnings
	}
}

func parseObject(s string) (map[string]any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	doc, ok := v.(map[string]any)
	return doc, ok
}

func stubDocument(candidate string) map[string]any {
	runes := []rune(candidate)
	if len(runes) > 100 {
		runes = runes[:100]
	}
	return map[string]any{
		"error":    "JSON could not be repaired",
		"original": string(runes),
	}
}

func preview(s string) string {
	runes := []rune(s)
	if len(runes) > 200 {
		runes = runes[:200]
	}
	return string(runes)
}
