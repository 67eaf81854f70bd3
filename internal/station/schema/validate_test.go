package schema

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func scoreTiers() map[string]any {
	return map[string]any{
		"adequado":             map[string]any{"criterio": "Realiza tudo.", "pontos": 0.5},
		"parcialmenteAdequado": map[string]any{"criterio": "Realiza parte.", "pontos": 0.25},
		"inadequado":           map[string]any{"criterio": "Não realiza.", "pontos": 0.0},
	}
}

func evalItem(id string) map[string]any {
	return map[string]any{
		"idItem":            id,
		"itemNumeroOficial": 1.0,
		"descricaoItem":     "Avalia a conduta",
		"pontuacoes":        scoreTiers(),
	}
}

func validStation() map[string]any {
	return map[string]any{
		"idEstacao":           "REVALIDA_FACIL_2024_1_EST01_CM",
		"tituloEstacao":       "Atendimento de dor torácica aguda",
		"numeroDaEstacao":     1.0,
		"especialidade":       "CLÍNICA MÉDICA",
		"tempoDuracaoMinutos": 10.0,
		"palavrasChave":       []any{"dor torácica", "IAM", "emergência"},
		"nivelDificuldade":    "moderado",
		"instrucoesParticipante": map[string]any{
			"cenarioAtendimento": map[string]any{
				"nivelAtencao":          "atenção terciária",
				"tipoAtendimento":       "urgência",
				"infraestruturaUnidade": "sala de emergência",
			},
			"descricaoCasoCompleta": "Paciente de 58 anos com dor torácica há 2 horas.",
			"tarefasPrincipais":     []any{"Realizar anamnese", "Solicitar exames", "Definir conduta"},
		},
		"materiaisDisponiveis": map[string]any{},
		"padraoEsperadoProcedimento": map[string]any{
			"idChecklistAssociado":  "CHECKLIST_EST01",
			"pontuacaoTotalEstacao": 10.0,
			"sinteseEstacao": map[string]any{
				"resumoCasoPEP":          "Síndrome coronariana aguda.",
				"focoPrincipalDetalhado": []any{"diagnóstico", "conduta"},
				"itensAvaliacao":         []any{evalItem("i1"), evalItem("i2"), evalItem("i3")},
			},
			"feedbackEstacao": map[string]any{
				"resumoTecnico": "Estação de SCA conforme diretriz.",
				"fontes":        []any{"Diretriz SBC 2021"},
			},
		},
	}
}

func itens(doc map[string]any) []any {
	padrao := doc["padraoEsperadoProcedimento"].(map[string]any)
	sintese := padrao["sinteseEstacao"].(map[string]any)
	return sintese["itensAvaliacao"].([]any)
}

func TestValidate_CompleteDocument(t *testing.T) {
	out, rep := Validate(validStation())
	if !rep.IsValid {
		t.Fatalf("complete document flagged invalid: %+v", rep)
	}
	if len(rep.MissingRequiredFields) != 0 || len(rep.StructuralIssues) != 0 {
		t.Fatalf("unexpected issues: %+v", rep)
	}
	if out["tituloEstacao"] != "Atendimento de dor torácica aguda" {
		t.Fatalf("document content changed: %v", out["tituloEstacao"])
	}
}

func TestValidate_MissingTopLevelFields(t *testing.T) {
	_, rep := Validate(map[string]any{})
	if rep.IsValid {
		t.Fatal("empty document reported valid")
	}
	if len(rep.MissingRequiredFields) != len(requiredTopLevel) {
		t.Fatalf("missing = %v", rep.MissingRequiredFields)
	}
}

func TestValidate_SynthesizesMissingTiers(t *testing.T) {
	doc := validStation()
	itens(doc)[0].(map[string]any)["pontuacoes"] = map[string]any{
		"adequado": map[string]any{"pontos": 0.5, "criterio": "ok"},
	}

	out, rep := Validate(doc)
	pontuacoes := itens(out)[0].(map[string]any)["pontuacoes"].(map[string]any)

	parcial, ok := pontuacoes["parcialmenteAdequado"].(map[string]any)
	if !ok {
		t.Fatalf("parcialmenteAdequado not synthesized: %v", pontuacoes)
	}
	if parcial["pontos"] != 0.25 {
		t.Fatalf("parcial pontos = %v, want 0.25", parcial["pontos"])
	}
	inadequado, ok := pontuacoes["inadequado"].(map[string]any)
	if !ok {
		t.Fatalf("inadequado not synthesized: %v", pontuacoes)
	}
	if inadequado["pontos"] != 0.0 {
		t.Fatalf("inadequado pontos = %v, want 0", inadequado["pontos"])
	}
	if len(rep.CorrectionsApplied) != 2 {
		t.Fatalf("corrections = %v, want 2 entries", rep.CorrectionsApplied)
	}
}

func TestValidate_BinaryItemNotFlagged(t *testing.T) {
	doc := validStation()
	itens(doc)[0].(map[string]any)["pontuacoes"] = map[string]any{
		"adequado":   map[string]any{"criterio": "ok", "pontos": 0.25},
		"inadequado": map[string]any{"criterio": "não", "pontos": 0.0},
	}

	out, rep := Validate(doc)
	pontuacoes := itens(out)[0].(map[string]any)["pontuacoes"].(map[string]any)

	if _, present := pontuacoes["parcialmenteAdequado"]; present {
		t.Fatalf("binary item got a partial tier: %v", pontuacoes)
	}
	for _, issue := range rep.StructuralIssues {
		if strings.Contains(issue, "parcialmenteAdequado") {
			t.Fatalf("binary item flagged: %v", rep.StructuralIssues)
		}
	}
	if !rep.IsValid {
		t.Fatalf("binary item broke validity: %+v", rep)
	}
}

func TestValidate_MissingAdequadoDrivesSynthesis(t *testing.T) {
	doc := validStation()
	itens(doc)[0].(map[string]any)["pontuacoes"] = map[string]any{}

	out, _ := Validate(doc)
	pontuacoes := itens(out)[0].(map[string]any)["pontuacoes"].(map[string]any)

	adequado := pontuacoes["adequado"].(map[string]any)
	if adequado["pontos"] != 0.5 {
		t.Fatalf("adequado pontos = %v, want 0.5", adequado["pontos"])
	}
	parcial := pontuacoes["parcialmenteAdequado"].(map[string]any)
	if parcial["pontos"] != 0.25 {
		t.Fatalf("parcial pontos = %v, want 0.25", parcial["pontos"])
	}
	if _, present := pontuacoes["inadequado"]; !present {
		t.Fatalf("inadequado not synthesized: %v", pontuacoes)
	}
}

func TestValidate_InputNotMutated(t *testing.T) {
	doc := validStation()
	itens(doc)[0].(map[string]any)["pontuacoes"] = map[string]any{
		"adequado": map[string]any{"criterio": "ok", "pontos": 0.5},
	}
	before, _ := json.Marshal(doc)

	Validate(doc)

	after, _ := json.Marshal(doc)
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("input mutated:\nbefore: %s\nafter:  %s", before, after)
	}
}

func TestValidate_TypeChecks(t *testing.T) {
	doc := validStation()
	doc["numeroDaEstacao"] = "um"
	doc["tempoDuracaoMinutos"] = 12.5

	_, rep := Validate(doc)
	if rep.IsValid {
		t.Fatal("mistyped document reported valid")
	}
	if len(rep.InvalidFieldTypes) != 2 {
		t.Fatalf("invalid types = %v", rep.InvalidFieldTypes)
	}
}

func TestValidate_EnumAndPatternWarnings(t *testing.T) {
	doc := validStation()
	doc["especialidade"] = "DERMATOLOGIA"
	doc["idEstacao"] = "EST_01"

	_, rep := Validate(doc)
	if !rep.IsValid {
		t.Fatalf("enum violations must stay warnings: %+v", rep)
	}
	if len(rep.Warnings) != 2 {
		t.Fatalf("warnings = %v", rep.Warnings)
	}
}

func TestValidate_CardinalityWarnings(t *testing.T) {
	doc := validStation()
	instrucoes := doc["instrucoesParticipante"].(map[string]any)
	instrucoes["tarefasPrincipais"] = []any{"Realizar anamnese"}
	doc["palavrasChave"] = []any{"dor"}

	_, rep := Validate(doc)
	if !rep.IsValid {
		t.Fatalf("cardinality must stay a warning: %+v", rep)
	}
	if len(rep.Warnings) < 2 {
		t.Fatalf("warnings = %v", rep.Warnings)
	}
}

func TestReport_JSONFieldNames(t *testing.T) {
	b, err := json.Marshal(NewReport())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, name := range []string{
		"is_valid", "missing_required_fields", "invalid_field_types",
		"structural_issues", "warnings", "corrections_applied",
	} {
		if _, ok := m[name]; !ok {
			t.Fatalf("field %q missing from report JSON: %s", name, b)
		}
	}
	if !strings.Contains(string(b), `"warnings":[]`) {
		t.Fatalf("empty lists must serialize as arrays: %s", b)
	}
}
