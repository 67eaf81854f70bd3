package services

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/revalidafacil/stations-backend/internal/clients/gemini"
	"github.com/revalidafacil/stations-backend/internal/localstore"
	"github.com/revalidafacil/stations-backend/internal/logger"
	"github.com/revalidafacil/stations-backend/internal/station/pipeline"
)

// fakeLLM answers each GenerateText call with the next scripted reply and
// records the prompts it saw.
type fakeLLM struct {
	replies []string
	errs    []error
	prompts []string
	prefs   []gemini.ModelPreference
}

func (f *fakeLLM) GenerateText(_ context.Context, prompt string, pref gemini.ModelPreference) (string, error) {
	call := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	f.prefs = append(f.prefs, pref)
	if call < len(f.errs) && f.errs[call] != nil {
		return "", f.errs[call]
	}
	if call < len(f.replies) {
		return f.replies[call], nil
	}
	return "", errors.New("no scripted reply")
}

func (f *fakeLLM) CorrectJSON(ctx context.Context, broken string) (string, error) {
	return f.GenerateText(ctx, broken, gemini.PreferFast)
}

func stationReply(titulo string) string {
	doc := map[string]any{
		"tituloEstacao":   titulo,
		"numeroDaEstacao": 1,
	}
	raw, _ := json.Marshal(doc)
	return "```json\n" + string(raw) + "\n```"
}

func newTestService(t *testing.T, llm *fakeLLM) *StationService {
	t.Helper()
	log := logger.NewNop()
	local, err := localstore.New(log, t.TempDir())
	if err != nil {
		t.Fatalf("localstore: %v", err)
	}
	svc, err := NewStationService(log, llm, pipeline.New(log, llm), nil, local, nil)
	if err != nil {
		t.Fatalf("NewStationService: %v", err)
	}
	return svc
}

func TestGenerateStation_RunsAllPhases(t *testing.T) {
	llm := &fakeLLM{replies: []string{
		"resumo clínico do tema",
		"proposta A\n---\nproposta B",
		stationReply("Estação IAM"),
	}}
	svc := newTestService(t, llm)

	res, err := svc.GenerateStation(context.Background(), GenerateRequest{Tema: "IAM", Especialidade: "CLÍNICA MÉDICA"})
	if err != nil {
		t.Fatalf("GenerateStation: %v", err)
	}
	if len(llm.prompts) != 3 {
		t.Fatalf("phase calls = %d", len(llm.prompts))
	}
	// Phase 2 builds on the phase-1 summary, phase 3 on the chosen proposal.
	if !strings.Contains(llm.prompts[1], "resumo clínico do tema") {
		t.Fatalf("phase 2 prompt missing summary")
	}
	if !strings.Contains(llm.prompts[2], "proposta A") || strings.Contains(llm.prompts[2], "proposta B") {
		t.Fatalf("phase 3 prompt must carry only the first proposal")
	}
	if llm.prefs[0] != gemini.PreferFast || llm.prefs[2] != gemini.PreferAdvanced {
		t.Fatalf("prefs = %v", llm.prefs)
	}
	if res.Document["tituloEstacao"] != "Estação IAM" {
		t.Fatalf("document = %v", res.Document)
	}
	if res.Report.IsValid {
		t.Fatal("incomplete station reported valid")
	}
	if res.Synced {
		t.Fatal("synced without a database")
	}
	if _, err := os.Stat(res.LocalFile); err != nil {
		t.Fatalf("local file missing: %v", err)
	}
}

func TestGenerateStation_PhaseFailureAborts(t *testing.T) {
	llm := &fakeLLM{
		replies: []string{"resumo"},
		errs:    []error{nil, gemini.ErrQuotaExceeded},
	}
	svc := newTestService(t, llm)

	_, err := svc.GenerateStation(context.Background(), GenerateRequest{Tema: "IAM"})
	if !errors.Is(err, gemini.ErrQuotaExceeded) {
		t.Fatalf("err = %v", err)
	}
	if len(llm.prompts) != 2 {
		t.Fatalf("calls after failure = %d", len(llm.prompts))
	}
}

func TestGenerateStation_RequiresTema(t *testing.T) {
	svc := newTestService(t, &fakeLLM{})
	if _, err := svc.GenerateStation(context.Background(), GenerateRequest{}); err == nil {
		t.Fatal("expected error for empty tema")
	}
}

func TestGenerateBatch_KeepsOrderAndIsolatesFailures(t *testing.T) {
	// Replies are keyed on prompt content, not call order, because the batch
	// runs its generations concurrently.
	scripted := &scriptedByTema{fail: "tema_ruim"}
	svc, err := NewStationService(logger.NewNop(), scripted, pipeline.New(logger.NewNop(), nil), nil, mustLocal(t), nil)
	if err != nil {
		t.Fatalf("NewStationService: %v", err)
	}

	results := svc.GenerateBatch(context.Background(), []GenerateRequest{
		{Tema: "tema_bom", Especialidade: "PEDIATRIA"},
		{Tema: "tema_ruim", Especialidade: "PEDIATRIA"},
	})

	if len(results) != 2 {
		t.Fatalf("results = %d", len(results))
	}
	if results[0].Request.Tema != "tema_bom" || results[1].Request.Tema != "tema_ruim" {
		t.Fatalf("order lost: %+v", results)
	}
	if results[0].Error != "" || results[0].Result == nil {
		t.Fatalf("good request failed: %+v", results[0])
	}
	if results[0].Result.Synced {
		t.Fatal("batch generation must skip the database")
	}
	if results[1].Error == "" || results[1].Result != nil {
		t.Fatalf("bad request succeeded: %+v", results[1])
	}
}

// scriptedByTema keys replies on the prompt content so concurrent calls stay
// deterministic.
type scriptedByTema struct {
	fail string
}

func (s *scriptedByTema) GenerateText(_ context.Context, prompt string, _ gemini.ModelPreference) (string, error) {
	if strings.Contains(prompt, s.fail) {
		return "", gemini.ErrQuotaExceeded
	}
	if strings.Contains(prompt, "FASE 1") {
		return "resumo", nil
	}
	if strings.Contains(prompt, "FASE 2") {
		return "proposta única", nil
	}
	return stationReply("Estação batch"), nil
}

func (s *scriptedByTema) CorrectJSON(_ context.Context, _ string) (string, error) {
	return "", errors.New("not scripted")
}

func mustLocal(t *testing.T) *localstore.Store {
	t.Helper()
	local, err := localstore.New(logger.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("localstore: %v", err)
	}
	return local
}

func TestAuditStation_UsesStoredDocument(t *testing.T) {
	llm := &fakeLLM{replies: []string{
		"resumo", "proposta", stationReply("Estação auditável"),
		"## Pontos Fortes\ntudo certo",
	}}
	svc := newTestService(t, llm)

	res, err := svc.GenerateStation(context.Background(), GenerateRequest{Tema: "AVC"})
	if err != nil {
		t.Fatalf("GenerateStation: %v", err)
	}

	analysis, err := svc.AuditStation(context.Background(), res.ID, "focar no tempo porta-agulha")
	if err != nil {
		t.Fatalf("AuditStation: %v", err)
	}
	if !strings.Contains(analysis, "Pontos Fortes") {
		t.Fatalf("analysis = %q", analysis)
	}
	auditPrompt := llm.prompts[3]
	if !strings.Contains(auditPrompt, "Estação auditável") {
		t.Fatal("audit prompt missing station JSON")
	}
	if !strings.Contains(auditPrompt, "focar no tempo porta-agulha") {
		t.Fatal("audit prompt missing user feedback")
	}
	if llm.prefs[3] != gemini.PreferAdvanced {
		t.Fatalf("audit pref = %v", llm.prefs[3])
	}
}

func TestAuditStation_UnknownID(t *testing.T) {
	svc := newTestService(t, &fakeLLM{})
	_, err := svc.AuditStation(context.Background(), uuid.New(), "")
	if !errors.Is(err, ErrStationNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestSanitizePadrao_CoercesTypes(t *testing.T) {
	doc := map[string]any{
		"padraoEsperadoProcedimento": map[string]any{
			"idChecklistAssociado": 17.0,
			"sinteseEstacao": map[string]any{
				"resumoCasoPEP":          42.0,
				"focoPrincipalDetalhado": "diagnóstico",
				"itensAvaliacao": []any{
					map[string]any{
						"idItem": 1.0,
						"pontuacoes": map[string]any{
							"adequado": map[string]any{"criterio": "ok", "pontos": "0,5"},
						},
					},
					"item solto",
				},
			},
			"feedbackEstacao": map[string]any{
				"resumoTecnico": []any{"a"},
				"fontes":        []any{"Diretriz", 2024.0},
			},
		},
	}

	sanitizePadrao(doc)
	padrao := doc["padraoEsperadoProcedimento"].(map[string]any)

	if padrao["idChecklistAssociado"] != "17" {
		t.Fatalf("idChecklistAssociado = %v", padrao["idChecklistAssociado"])
	}
	sintese := padrao["sinteseEstacao"].(map[string]any)
	if sintese["resumoCasoPEP"] != "42" {
		t.Fatalf("resumoCasoPEP = %v", sintese["resumoCasoPEP"])
	}
	foco := sintese["focoPrincipalDetalhado"].([]any)
	if len(foco) != 1 || foco[0] != "diagnóstico" {
		t.Fatalf("foco = %v", foco)
	}
	itens := sintese["itensAvaliacao"].([]any)
	first := itens[0].(map[string]any)
	if first["idItem"] != "1" {
		t.Fatalf("idItem = %v", first["idItem"])
	}
	pontos := first["pontuacoes"].(map[string]any)["adequado"].(map[string]any)["pontos"]
	if pontos != 0.5 {
		t.Fatalf("pontos = %v", pontos)
	}
	stub := itens[1].(map[string]any)
	if stub["idItem"] != "item_basico" || stub["descricaoItem"] != "item solto" {
		t.Fatalf("stub = %v", stub)
	}
	fontes := padrao["feedbackEstacao"].(map[string]any)["fontes"].([]any)
	if fontes[1] != "2024" {
		t.Fatalf("fontes = %v", fontes)
	}
}
