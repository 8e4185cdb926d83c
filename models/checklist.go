package models

import "strings"

// ChecklistItemTemplate is one static checkpoint from MAL_ELKONTROLL.doc
// (KAP.5.4). Loaded once at startup, never mutated.
type ChecklistItemTemplate struct {
	ID          string `json:"id"`
	Category    string `json:"cat"`
	CategoryNum int    `json:"catNum"`
	Text        string `json:"text"`
}

type Category struct {
	Num  int    `json:"num"`
	Name string `json:"name"`
	Page int    `json:"page"`
}

// Comment markers written by the auto-comment routine. Anything else in the
// comment field is treated as user-authored and is never overwritten.
const (
	autoCommentOK = "OK"
	autoCommentIA = "IA"
)

// ChecklistItem is the mutable draft state for one checkpoint.
type ChecklistItem struct {
	ChecklistItemTemplate
	Checked           bool   `json:"checked"`
	NotApplicable     bool   `json:"ia"`
	Deviation         bool   `json:"deviation"`
	Corrected         bool   `json:"corrected"`
	RequiresInstaller bool   `json:"installer"`
	Comment           string `json:"comment"`
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func isAutoOK(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), autoCommentOK)
}

func isAutoIA(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), autoCommentIA)
}

// applyAutoComment maintains the OK/IA auto text without ever touching
// user-authored comments. Priority: not-applicable, then deviation, then
// checked, then unchecked cleanup.
func (item *ChecklistItem) applyAutoComment() {
	if item.NotApplicable {
		if isBlank(item.Comment) || isAutoOK(item.Comment) {
			item.Comment = autoCommentIA
		}
		return
	}

	if item.Deviation {
		if isAutoOK(item.Comment) {
			item.Comment = ""
		}
		return
	}

	if item.Checked {
		if isBlank(item.Comment) || isAutoOK(item.Comment) || isAutoIA(item.Comment) {
			item.Comment = autoCommentOK
		}
	} else {
		if isAutoOK(item.Comment) || isAutoIA(item.Comment) {
			item.Comment = ""
		}
	}
}

// ToggleChecked flips the checked flag. Removing the check also removes
// not-applicable: a checkpoint cannot be "ikkje aktuelt" and unchecked.
func (item *ChecklistItem) ToggleChecked() {
	item.Checked = !item.Checked
	if !item.Checked && item.NotApplicable {
		item.NotApplicable = false
	}
	item.applyAutoComment()
}

// ToggleNotApplicable flips the IA flag. Turning it on marks the point as
// handled without deviation; the returned hint tells the caller to move focus
// to the next checkpoint (UI convenience, not a data rule).
func (item *ChecklistItem) ToggleNotApplicable() (advance bool) {
	item.NotApplicable = !item.NotApplicable

	if item.NotApplicable {
		item.Checked = true
		// IA cannot coexist with a deviation.
		item.Deviation = false
		item.Corrected = false
		item.RequiresInstaller = false
		item.applyAutoComment()
		return true
	}

	if isAutoIA(item.Comment) {
		item.Comment = ""
	}
	item.applyAutoComment()
	return false
}

// ToggleDeviation flips the deviation flag. Deviation and IA are mutually
// exclusive; dropping the deviation also drops corrected/installer, which are
// only meaningful under an active deviation.
func (item *ChecklistItem) ToggleDeviation() {
	if !item.Deviation && item.NotApplicable {
		item.NotApplicable = false
		if isAutoIA(item.Comment) {
			item.Comment = ""
		}
		item.applyAutoComment()
	}
	item.Deviation = !item.Deviation
	if !item.Deviation {
		item.Corrected = false
		item.RequiresInstaller = false
	}
	item.applyAutoComment()
}

// ToggleCorrected and ToggleInstaller are plain flips, only meaningful (and
// only offered by the UI) while a deviation is active.
func (item *ChecklistItem) ToggleCorrected() {
	if !item.Deviation {
		return
	}
	item.Corrected = !item.Corrected
}

func (item *ChecklistItem) ToggleInstaller() {
	if !item.Deviation {
		return
	}
	item.RequiresInstaller = !item.RequiresInstaller
}

// SetComment records a user edit. User text always overrides the auto text.
func (item *ChecklistItem) SetComment(comment string) {
	item.Comment = comment
}

// NewChecklist instantiates one mutable item per template, in template order.
func NewChecklist() []ChecklistItem {
	items := make([]ChecklistItem, len(DefaultItems))
	for i, tpl := range DefaultItems {
		items[i] = ChecklistItem{ChecklistItemTemplate: tpl}
	}
	return items
}

// Categories as laid out on the two report pages.
var Categories = []Category{
	{Num: 1, Name: "Inntak", Page: 1},
	{Num: 2, Name: "Fordelinger", Page: 1},
	{Num: 3, Name: "Målinger", Page: 1},
	{Num: 4, Name: "Jording", Page: 1},
	{Num: 5, Name: "Generelt", Page: 2},
	{Num: 6, Name: "Varmekabelanlegg", Page: 2},
	{Num: 7, Name: "Våtrom", Page: 2},
	{Num: 8, Name: "Utvendige anlegg", Page: 2},
}

// DefaultItems holds the standard checkpoints from MAL_ELKONTROLL.doc.
var DefaultItems = []ChecklistItemTemplate{
	// SIDE 1 - Inntak, Fordelinger, Målinger, Jording
	{ID: "1.1", Category: "Inntak", CategoryNum: 1, Text: "Inntakskabel er betryggende festet til underlag og er fri for skader"},
	{ID: "1.2", Category: "Inntak", CategoryNum: 1, Text: "Er kabel beskyttet med halvrør eller likn? (ute på vegg)"},
	{ID: "1.3", Category: "Inntak", CategoryNum: 1, Text: "Er kapslingsgrad/avdekking ivaretatt? (Usakkyndig=IP2XC/IP3X, Sakkyndig=IP2X)"},
	{ID: "2.1", Category: "Fordelinger", CategoryNum: 2, Text: "Fordeling/sikringsskap er merket med nr./navn og nominell spenning"},
	{ID: "2.2", Category: "Fordelinger", CategoryNum: 2, Text: "Fordeling er merket med skilt på dør dersom kun for sakkyndig/instruert personell"},
	{ID: "2.3", Category: "Fordelinger", CategoryNum: 2, Text: "Kursfortegnelse er oppdatert"},
	{ID: "2.4", Category: "Fordelinger", CategoryNum: 2, Text: "Alle komponenter er tilfredsstillende merket"},
	{ID: "2.5", Category: "Fordelinger", CategoryNum: 2, Text: "Er vern riktig montert/innstilt iht. ledertverrsnitt og leverandørens spesifikasjoner"},
	{ID: "2.6", Category: "Fordelinger", CategoryNum: 2, Text: "Er kabelgjennomføringer og branntetting OK?"},
	{ID: "2.7", Category: "Fordelinger", CategoryNum: 2, Text: "Bruksanvisning til jordfeilbryter/varsling er montert"},
	{ID: "2.8", Category: "Fordelinger", CategoryNum: 2, Text: "Overspenningsvern er kontrollert og OK"},
	{ID: "2.9", Category: "Fordelinger", CategoryNum: 2, Text: "Kontrollert varmgang i tilkoblinger, utstyr og ledere"},
	{ID: "2.10", Category: "Fordelinger", CategoryNum: 2, Text: "Aluminiumstilkoblinger er utført riktig"},
	{ID: "2.11", Category: "Fordelinger", CategoryNum: 2, Text: "Jordfeilbrytere/jordfeilautomater testes og er sjekket riktig kurs og størrelse"},
	{ID: "3.1", Category: "Målinger", CategoryNum: 3, Text: "Isolasjonsmåling utført (før 01.01.99: >0,23 MΩ, etter: >0,5 MΩ)"},
	{ID: "3.2", Category: "Målinger", CategoryNum: 3, Text: "Spenningsmåling"},
	{ID: "3.3", Category: "Målinger", CategoryNum: 3, Text: "Kontinuitetsmåling av jord og utjevningsforbindelser"},
	{ID: "4.1", Category: "Jording", CategoryNum: 4, Text: "Hovedjord og utjevningsforbindelser er riktig utført og merket"},
	{ID: "4.2", Category: "Jording", CategoryNum: 4, Text: "Kontroller at det er kun ein jordleder under kvar tilkobling"},
	{ID: "4.3", Category: "Jording", CategoryNum: 4, Text: "Jordelektroder er montert og dokumentert"},
	{ID: "4.4", Category: "Jording", CategoryNum: 4, Text: "Kontroller at det ikkje er jordet og ujordet installasjon i samme rom"},
	{ID: "4.5", Category: "Jording", CategoryNum: 4, Text: "Er det foretatt kontinuitetsmåling, og i så fall er verdier OK?"},
	// SIDE 2 - Generelt, Varmekabel, Våtrom, Utvendig
	{ID: "5.1", Category: "Generelt", CategoryNum: 5, Text: "Kabler er betryggende festet og mekanisk beskyttet"},
	{ID: "5.2", Category: "Generelt", CategoryNum: 5, Text: "Kabelgjennomføringer er forskriftsmessig tettet med godkjent produkt"},
	{ID: "5.3", Category: "Generelt", CategoryNum: 5, Text: "Alt materiell og utstyr er av godkjent kvalitet"},
	{ID: "5.4", Category: "Generelt", CategoryNum: 5, Text: "Skjøteledninger er i forskriftsmessig stand"},
	{ID: "5.5", Category: "Generelt", CategoryNum: 5, Text: "Utstyr som ikkje er i bruk, er i forskriftsmessig stand eller frakoblet"},
	{ID: "5.6", Category: "Generelt", CategoryNum: 5, Text: "Belysning er kontrollert for varmgang, funksjonalitet og renhold"},
	{ID: "5.7", Category: "Generelt", CategoryNum: 5, Text: "Ovner har tilstrekkelig/god avstand til brennbart materiale"},
	{ID: "5.8", Category: "Generelt", CategoryNum: 5, Text: "Flyttbare varmeovner er godkjent"},
	{ID: "5.9", Category: "Generelt", CategoryNum: 5, Text: "Sjekk VVB tilkoblinger, stikk, støpsel, kabel og koblingshus"},
	{ID: "6.1", Category: "Varmekabelanlegg", CategoryNum: 6, Text: "Skjult varme har forankoblet jordfeilbryter 30mA"},
	{ID: "6.2", Category: "Varmekabelanlegg", CategoryNum: 6, Text: "Forskriftsmessig montert"},
	{ID: "6.3", Category: "Varmekabelanlegg", CategoryNum: 6, Text: "Varmeanlegget er korrekt merket og dokumentert"},
	{ID: "6.4", Category: "Varmekabelanlegg", CategoryNum: 6, Text: "Utvendige anlegg er merket med lett synlig skilt som angir anleggets utstrekning"},
	{ID: "6.5", Category: "Varmekabelanlegg", CategoryNum: 6, Text: "Kontroller at deler av anlegget ikkje er udekket"},
	{ID: "6.6", Category: "Varmekabelanlegg", CategoryNum: 6, Text: "Foreta jordfeilmåling av anlegget, noter måleresultat"},
	{ID: "7.1", Category: "Våtrom", CategoryNum: 7, Text: "Kapslingsgrad er ivaretatt"},
	{ID: "7.2", Category: "Våtrom", CategoryNum: 7, Text: "Soneinndeling er ivaretatt"},
	{ID: "7.3", Category: "Våtrom", CategoryNum: 7, Text: "30 mA jordfeilbryter er montert, testet og merket"},
	{ID: "7.4", Category: "Våtrom", CategoryNum: 7, Text: "Brytere har allpolig brudd"},
	{ID: "7.5", Category: "Våtrom", CategoryNum: 7, Text: "Lavvoltutstyr er forskriftsmessig montert og dokumentert"},
	{ID: "8.1", Category: "Utvendige anlegg", CategoryNum: 8, Text: "Brytere er forskriftsmessig montert og er allpolig"},
	{ID: "8.2", Category: "Utvendige anlegg", CategoryNum: 8, Text: "Kabler over terreng er tilstrekkelig mekanisk beskyttet og fri for skade"},
	{ID: "8.3", Category: "Utvendige anlegg", CategoryNum: 8, Text: "Det er montert 30mA jordfeilbryter for stikkontakter"},
	{ID: "8.4", Category: "Utvendige anlegg", CategoryNum: 8, Text: "Kapslingsgrad og høyde over bakke er ivaretatt"},
	{ID: "8.5", Category: "Utvendige anlegg", CategoryNum: 8, Text: "Utjevning/jordelektrode er korrekt utført"},
	{ID: "8.6", Category: "Utvendige anlegg", CategoryNum: 8, Text: "Kabler i bakken er godkjent for dette"},
	{ID: "8.7", Category: "Utvendige anlegg", CategoryNum: 8, Text: "Luftledninger har tilstrekkelig høgde og er av godkjent type"},
}

var PhotoTypes = []string{"Sikringsskap", "Kursfortegnelse", "Oversikt", "Avvik", "Anna"}

var UnitSuffixes = []string{
	"H0101", "H0102", "H0103", "H0201", "H0202", "H0203", "H0301", "H0302",
	"Leil. A", "Leil. B", "Leil. C", "Kjellar", "Loft", "Garasje",
}
