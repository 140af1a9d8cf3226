package pipeline

import "strings"

var familyEvidence = map[string][]string{
	"AC": {
		"Access control lists (ACLs) and permission configurations",
		"User access review documentation and approval records",
		"Role-based access control (RBAC) matrix",
		"Access request and approval workflow records",
		"System access logs showing enforcement",
		"Screenshots of access control configurations",
		"Periodic access certification reports",
	},
	"AU": {
		"Audit log configuration screenshots",
		"Sample audit log entries",
		"Log retention policy documentation",
		"SIEM configuration and alert rules",
		"Audit review meeting minutes",
		"Log storage capacity monitoring reports",
		"Audit trail integrity verification records",
	},
	"AT": {
		"Security awareness training completion records",
		"Training materials and curricula",
		"Phishing simulation results",
		"Role-based training records",
		"Annual training schedule and attendance",
		"Training effectiveness assessments",
		"New hire security training documentation",
	},
	"CA": {
		"System security assessment reports",
		"Penetration test results",
		"Vulnerability scan reports",
		"Plan of Action and Milestones (POA&M)",
		"Authorization decision letters",
		"Continuous monitoring reports",
		"Control assessment procedures",
	},
	"CM": {
		"Baseline configuration documentation",
		"Configuration change records and approvals",
		"Hardening guides and checklists",
		"Software inventory and licenses",
		"System component inventory",
		"Configuration audit reports",
		"Deviation documentation and approvals",
	},
	"CP": {
		"Business continuity plan (BCP)",
		"Disaster recovery plan (DRP)",
		"Backup test results and logs",
		"Recovery time objective (RTO) documentation",
		"Alternate processing site agreements",
		"Contingency plan test results",
		"System backup schedules and verification",
	},
	"IA": {
		"Password policy configurations",
		"Multi-factor authentication (MFA) enrollment records",
		"Identity proofing procedures",
		"Authenticator management procedures",
		"PKI certificate inventory",
		"Account provisioning/deprovisioning records",
		"Identity federation configurations",
	},
	"IR": {
		"Incident response plan and procedures",
		"Incident tracking and resolution records",
		"Post-incident analysis reports",
		"Incident response team training records",
		"Contact lists and escalation procedures",
		"Incident detection tool configurations",
		"Lessons learned documentation",
	},
	"MA": {
		"Maintenance schedules and logs",
		"Remote maintenance session records",
		"Maintenance personnel authorization records",
		"Equipment sanitization procedures",
		"Maintenance tool inventories",
		"Preventive maintenance records",
		"Vendor maintenance agreements",
	},
	"MP": {
		"Media sanitization records and certificates",
		"Media inventory and tracking logs",
		"Media handling procedures",
		"Transport authorization records",
		"Encryption key management for media",
		"Media destruction certificates",
		"Removable media policy acknowledgments",
	},
	"PE": {
		"Physical access control logs",
		"Visitor logs and escort procedures",
		"Badge/key issuance records",
		"Surveillance system configurations",
		"Environmental monitoring logs",
		"Emergency lighting test records",
		"Physical security inspection reports",
	},
	"PL": {
		"System security plan (SSP)",
		"Privacy impact assessments",
		"Rules of behavior acknowledgments",
		"Security architecture diagrams",
		"System boundary documentation",
		"Interconnection security agreements",
		"Annual SSP reviews and updates",
	},
	"PS": {
		"Personnel screening records",
		"Position risk designations",
		"Access agreement acknowledgments",
		"Termination and transfer checklists",
		"Third-party personnel agreements",
		"Personnel sanctions documentation",
		"Background investigation records",
	},
	"RA": {
		"Risk assessment reports",
		"Security categorization documentation",
		"Vulnerability scan results",
		"Threat assessments",
		"Risk register",
		"Penetration test findings",
		"Risk acceptance documentation",
	},
	"SA": {
		"System development lifecycle documentation",
		"Secure coding standards",
		"Security testing results",
		"Third-party security assessments",
		"Supply chain risk assessments",
		"Developer training records",
		"Security requirements documentation",
	},
	"SC": {
		"Network diagrams showing security zones",
		"Encryption configurations",
		"Firewall and IDS/IPS rules",
		"TLS/SSL certificate inventory",
		"Network segmentation documentation",
		"Cryptographic key management procedures",
		"Boundary protection configurations",
	},
	"SI": {
		"Vulnerability remediation records",
		"Malware protection configurations",
		"Software update/patch logs",
		"Security alert monitoring procedures",
		"Input validation configurations",
		"Error handling procedures",
		"Memory protection configurations",
	},
	"SR": {
		"Supply chain risk management plan",
		"Supplier security assessments",
		"Component authenticity verification",
		"Tamper protection procedures",
		"Supplier monitoring reports",
		"Critical component sourcing records",
		"Supply chain incident response plans",
	},
}

var genericEvidence = []string{
	"Policy and procedure documentation",
	"Implementation evidence (configurations, screenshots)",
	"Periodic review and audit records",
	"Training and awareness documentation",
	"Monitoring and reporting evidence",
}

// EvidenceSuggestions returns typical audit evidence for controls of a
// family. Unknown families get a generic list.
func EvidenceSuggestions(family string) []string {
	if evidence, ok := familyEvidence[strings.ToUpper(strings.TrimSpace(family))]; ok {
		return evidence
	}
	return genericEvidence
}
