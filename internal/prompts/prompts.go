// Package prompts assembles the prompt text for each generation phase. Pure
// string assembly; callers own model selection and retries.
package prompts

import (
	"fmt"
	"strings"
)

// Phase1 asks for a focused clinical summary of the theme.
func Phase1(tema, especialidade string) string {
	return fmt.Sprintf(`# FASE 1: ANÁLISE E CONTEXTUALIZAÇÃO ESPECÍFICA

**SUA TAREFA PRINCIPAL:**
Criar um resumo clínico FOCADO ESPECIFICAMENTE no tema "%s" em %s.

**METODOLOGIA:**
1. Identifique os pontos-chave de diagnóstico e conduta para "%s".
2. Estruture o resumo em: definição, quadro clínico, exames relevantes, conduta.
3. Restrinja-se ao que é avaliável em uma estação prática de 10 minutos.

**FORMATO DE SAÍDA:**
Texto corrido em português, sem JSON, máximo de 600 palavras.`, tema, especialidade, tema)
}

// Phase2 asks for station proposals built on the phase-1 summary. When
// abordagens is non-empty the proposals are restricted to those approach ids.
func Phase2(tema, especialidade, resumoClinico string, abordagens []string) string {
	restricao := ""
	if len(abordagens) > 0 {
		restricao = fmt.Sprintf("\n**ABORDAGENS PERMITIDAS:** %s\n", strings.Join(abordagens, ", "))
	}
	return fmt.Sprintf(`# FASE 2: PROPOSTAS DE ESTAÇÃO

**TEMA:** %s
**ESPECIALIDADE:** %s
%s
**RESUMO CLÍNICO (FASE 1):**
%s

**TAREFA:**
Proponha estações clínicas distintas para o tema acima. Para cada proposta
descreva: cenário de atendimento, tarefas do participante e foco da avaliação.
Separe as propostas com uma linha contendo apenas "---".`, tema, especialidade, restricao, resumoClinico)
}

// Phase3 asks for the final station as a single JSON document.
func Phase3(tema, especialidade, resumoClinico, propostaEscolhida string) string {
	return fmt.Sprintf(`# FASE 3: GERAÇÃO DA ESTAÇÃO FINAL

**TEMA:** %s
**ESPECIALIDADE:** %s

**RESUMO CLÍNICO:**
%s

**PROPOSTA ESCOLHIDA:**
%s

**TAREFA:**
Gere a estação clínica completa no formato JSON da estação REVALIDA, incluindo
instrucoesParticipante, materiaisDisponiveis (informações verbais, impressos e
perguntas do ator) e padraoEsperadoProcedimento com itens de avaliação e
pontuações adequado/parcialmenteAdequado/inadequado.

**SAÍDA:**
Retorne APENAS o JSON, dentro de um bloco `+"```json"+`,
sem comentários ou texto adicional.`, tema, especialidade, resumoClinico, propostaEscolhida)
}

// Analise is the phase-4 audit prompt over an existing station.
func Analise(stationJSON, feedback string) string {
	feedbackSection := ""
	if strings.TrimSpace(feedback) != "" {
		feedbackSection = fmt.Sprintf("\n**DIRETRIZES ADICIONAIS DO USUÁRIO:**\n%s\n", feedback)
	}
	return fmt.Sprintf(`# ANÁLISE DE ESTAÇÃO CLÍNICA

**PERSONA:** Avaliador sênior do INEP.
%s
**TAREFA:**
Analise o JSON da estação abaixo e forneça um feedback em markdown com:
Pontos Fortes, Pontos de Melhoria e Sugestão de Ação.

**JSON PARA ANÁLISE:**
`+"```json\n%s\n```", feedbackSection, stationJSON)
}

// ApplyAudit asks for a new station JSON incorporating the audit result.
func ApplyAudit(stationJSON, analysisResult string) string {
	return fmt.Sprintf(`# APLICAR MUDANÇAS DE AUDITORIA

**PERSONA:** Desenvolvedor de conteúdo médico experiente.

**TAREFA:**
Você receberá um JSON de uma estação clínica e o resultado de uma auditoria.
Retorne um NOVO JSON que incorpore as 'Sugestões de Ação' da auditoria. NÃO
adicione comentários, explicações ou markdown. A saída deve ser apenas o
código JSON modificado.

**JSON ORIGINAL:**
`+"```json\n%s\n```"+`

**RESULTADO DA AUDITORIA A SER APLICADO:**
`+"```markdown\n%s\n```"+`

**NOVO JSON (APENAS O CÓDIGO):**`, stationJSON, analysisResult)
}

// JSONCorrection is the last-resort syntax-repair prompt. The instruction is
// kept short so the model returns the document with minimal drift.
func JSONCorrection(broken string) string {
	return fmt.Sprintf(`The following text should be valid JSON for a medical exam station but contains syntax errors. Fix ALL syntax errors and return ONLY the valid JSON, no explanation. Preserve all structure and clinical content.

Invalid JSON:
`+"```\n%s\n```", broken)
}
