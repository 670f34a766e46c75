package gateway

// CBCode is one entry of the shared "Carte Bancaire" authorization result
// table used by the French card network. Several backends (Paybox,
// SystemPay) report card-level failures through these two-digit codes.
type CBCode struct {
	Message string
	Result  Result
}

// CBResponseCodes maps the two-digit CB/EMV authorization code to its
// user-facing message and normalized result. Messages are the card network's
// own wording and must not be rephrased.
var CBResponseCodes = map[string]CBCode{
	"00": {"Transaction approuvée ou traitée avec succès", ResultPaid},
	"02": {"Contacter l'émetteur de carte", ResultDenied},
	"03": {"Accepteur invalide", ResultDenied},
	"04": {"Conserver la carte", ResultDenied},
	"05": {"Ne pas honorer", ResultDenied},
	"07": {"Conserver la carte, conditions spéciales", ResultDenied},
	"08": {"Approuver après identification", ResultDenied},
	"12": {"Transaction invalide", ResultDenied},
	"13": {"Montant invalide", ResultDenied},
	"14": {"Numéro de porteur invalide", ResultDenied},
	"15": {"Emetteur de carte inconnu", ResultDenied},
	"17": {"Annulation client", ResultCancelled},
	"19": {"Répéter la transaction ultérieurement", ResultDenied},
	"20": {"Réponse erronée (erreur dans le domaine serveur)", ResultDenied},
	"24": {"Mise à jour de fichier non supportée", ResultError},
	"25": {"Impossible de localiser l'enregistrement dans le fichier", ResultError},
	"26": {"Enregistrement dupliqué, ancien enregistrement remplacé", ResultError},
	"27": {"Erreur en « edit » sur champ de mise à jour fichier", ResultError},
	"28": {"Accès interdit au fichier", ResultError},
	"29": {"Mise à jour impossible", ResultError},
	"30": {"Erreur de format", ResultDenied},
	"31": {"Identifiant de l'organisme acquéreur inconnu", ResultError},
	"33": {"Date de validité de la carte dépassée", ResultDenied},
	"34": {"Suspicion de fraude", ResultDenied},
	"38": {"Nombre d'essais code confidentiel dépassé", ResultDenied},
	"41": {"Carte perdue", ResultDenied},
	"43": {"Carte volée", ResultDenied},
	"51": {"Provision insuffisante ou crédit dépassé", ResultDenied},
	"54": {"Date de validité de la carte dépassée", ResultDenied},
	"55": {"Code confidentiel erroné", ResultDenied},
	"56": {"Carte absente du fichier", ResultDenied},
	"57": {"Transaction non permise à ce porteur", ResultDenied},
	"58": {"Transaction interdite au terminal", ResultDenied},
	"59": {"Suspicion de fraude", ResultDenied},
	"60": {"L'accepteur de carte doit contacter l'acquéreur", ResultDenied},
	"61": {"Montant de retrait hors limite", ResultDenied},
	"63": {"Règles de sécurité non respectées", ResultDenied},
	"68": {"Réponse non parvenue ou reçue trop tard", ResultError},
	"75": {"Nombre d'essais code confidentiel dépassé", ResultDenied},
	"76": {"Porteur déjà en opposition, ancien enregistrement conservé", ResultDenied},
	"90": {"Arrêt momentané du système", ResultError},
	"91": {"Emetteur de cartes inaccessible", ResultError},
	"94": {"Transaction dupliquée", ResultError},
	"96": {"Mauvais fonctionnement du système", ResultError},
	"97": {"Echéance de la temporisation de surveillance globale", ResultExpired},
	"98": {"Serveur indisponible, routage réseau demandé à nouveau", ResultError},
	"99": {"Incident domaine initiateur", ResultError},
}

// LookupCBCode resolves a two-digit CB code. Unknown codes degrade to a
// generic error entry embedding the raw code.
func LookupCBCode(code string) CBCode {
	if entry, ok := CBResponseCodes[code]; ok {
		return entry
	}
	return CBCode{Message: "Code réponse CB inconnu: " + code, Result: ResultError}
}
