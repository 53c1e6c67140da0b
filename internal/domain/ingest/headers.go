package ingest

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Field names of the spreadsheet columns we keep. Clinical flag columns
// land in bed_snapshot.attributes under their field name.
const (
	fieldWardCode       = "ward_code"
	fieldBed            = "bed"
	fieldWardName       = "ward_name"
	fieldStatus         = "status"
	fieldAIH            = "aih"
	fieldCNS            = "cns"
	fieldPatientName    = "patient_name"
	fieldSex            = "sex"
	fieldBirthDate      = "birth_date"
	fieldAge            = "age"
	fieldAdmission      = "admission_date"
	fieldBedAdmission   = "bed_admission_date"
	fieldBlockingReason = "blocking_reason"
	fieldBlockingDate   = "blocking_date"
	fieldReservationReq = "reservation_requested_at"
	fieldReservationExp = "reservation_expected_at"
	fieldFollowUp       = "follow_up"
	fieldMedicalRecord  = "medical_record"
	fieldCID10          = "cid10"
	fieldSERCode        = "ser_code"
	fieldProfile        = "profile"
	fieldNotes          = "notes"
)

// headerTable maps the census spreadsheet headers to field names.
var headerTable = map[string]string{
	"NUM ENF":                    fieldWardCode,
	"LEITO":                      fieldBed,
	"NOME ENFERMARIA":            fieldWardName,
	"STATUS":                     fieldStatus,
	"AIH GERADA PARA O PACIENTE": fieldAIH,
	"NÚMERO DO CNS DO PACIENTE":  fieldCNS,
	"NOME PACIENTE":              fieldPatientName,
	"SEXO":                       fieldSex,
	"DATA NASC":                  fieldBirthDate,
	"IDADE":                      fieldAge,
	"DATA INTERN":                fieldAdmission,
	"DATA INTERN LEITO":          fieldBedAdmission,
	"MOTIVO IMPEDIMENTO":         fieldBlockingReason,
	"DATA IMPEDIMENTO":           fieldBlockingDate,
	"DATA SOL. RESERVA":          fieldReservationReq,
	"PREVISÃO INTERN. RESERVA":   fieldReservationExp,
	"ACOMPANHAMENTO DATA / HORA": fieldFollowUp,
	"PRONTUÁRIO":                 fieldMedicalRecord,
	"CID 10":                     fieldCID10,
	"CÓDIGO SER":                 fieldSERCode,
	"PERFIL":                     fieldProfile,
	"OBSERVAÇÃO":                 fieldNotes,

	"SUSPEITA COVID":                          "suspeita_covid",
	"PÓS COVID":                               "pos_covid",
	"BOMBA INFUSORA":                          "bomba_infusora",
	"SUPORTE CIRÚRGICO":                       "suporte_cirurgico",
	"SUPORTE ALIMENTAR":                       "suporte_alimentar",
	"MODO VENTILATÓRIO":                       "modo_ventilatorio",
	"CRÔNICO":                                 "cronico",
	"LONGA PERMANÊNCIA":                       "longa_permanencia",
	"SITUAÇÃO / MOTIVO PERMANÊNCIA":           "situacao_motivo_permanencia",
	"GESTANTE":                                "gestante",
	"INDUÇÃO AO PARTO":                        "inducao_parto",
	"ARBOVIROSE":                              "arbovirose",
	"VIABILIDADE PARA DIÁLISE PERITONEAL":     "viabilidade_dialise_peritoneal",
	"INFECÇÃO ATIVA E/OU USO DE ANTIBIOTICO":  "infeccao_ativa_antibiotico",
	"HISTÓRICO DE CIRURGIAS INTRA-ABDOMINAIS": "historico_cirurgias_abdominais",
	"DOENÇA NEOPLÁSICA AVANÇADA":              "doenca_neoplasica_avancada",
	"HÉRNIA INGUINAL A REPARAR":               "hernia_inguinal_reparar",
	"CONDIÇÕES DE ALTA COM DIÁLISE":           "condicoes_alta_dialise",
	"ESTÁ INSERIDO NO TRS":                    "inserido_no_trs",
}

// normalizedHeaders is headerTable keyed by NormalizeHeader.
var normalizedHeaders = func() map[string]string {
	out := make(map[string]string, len(headerTable))
	for h, f := range headerTable {
		out[NormalizeHeader(h)] = f
	}
	return out
}()

// NormalizeHeader trims, upper-cases, collapses inner whitespace and strips
// diacritics, so "Prontuário " and "PRONTUARIO" compare equal.
func NormalizeHeader(h string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, h)
	if err != nil {
		folded = h
	}
	return strings.Join(strings.Fields(strings.ToUpper(folded)), " ")
}

// FieldFor returns the field a header maps to.
func FieldFor(header string) (string, bool) {
	f, ok := normalizedHeaders[NormalizeHeader(header)]
	return f, ok
}
