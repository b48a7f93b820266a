// Package seed holds the demo catalog loaded by the seed command.
package seed

import "example.com/medifly/services/delivery/internal/models"

// Medicines returns the demo medicine catalog.
func Medicines() []models.Medicine {
	return []models.Medicine{
		{ID: "med-001", Name: "Ibuprofen", Category: "Pain Relief", Description: "Anti-inflammatory pain reliever", DosageOptions: "200mg,400mg,600mg", CommonQuantities: "10,20,30,50", UnitType: "tablets", AddedBy: "system"},
		{ID: "med-002", Name: "Acetaminophen", Category: "Pain Relief", Description: "Fever reducer and pain reliever", DosageOptions: "325mg,500mg,650mg", CommonQuantities: "10,20,30,50", UnitType: "tablets", AddedBy: "system"},
		{ID: "med-003", Name: "Aspirin", Category: "Pain Relief", Description: "Blood thinner and pain reliever", DosageOptions: "81mg,325mg", CommonQuantities: "30,60,90", UnitType: "tablets", AddedBy: "system"},
		{ID: "med-004", Name: "Amoxicillin", Category: "Antibiotics", Description: "Broad-spectrum antibiotic", DosageOptions: "250mg,500mg,875mg", CommonQuantities: "14,20,28", RequiresPrescription: true, UnitType: "tablets", AddedBy: "system"},
		{ID: "med-005", Name: "Azithromycin", Category: "Antibiotics", Description: "Antibiotic for bacterial infections", DosageOptions: "250mg,500mg", CommonQuantities: "5,6", RequiresPrescription: true, UnitType: "tablets", AddedBy: "system"},
		{ID: "med-006", Name: "Lisinopril", Category: "Blood Pressure", Description: "ACE inhibitor for high blood pressure", DosageOptions: "5mg,10mg,20mg", CommonQuantities: "30,60,90", RequiresPrescription: true, UnitType: "tablets", AddedBy: "system"},
		{ID: "med-007", Name: "Metoprolol", Category: "Blood Pressure", Description: "Beta blocker for heart conditions", DosageOptions: "25mg,50mg,100mg", CommonQuantities: "30,60,90", RequiresPrescription: true, UnitType: "tablets", AddedBy: "system"},
		{ID: "med-008", Name: "Metformin", Category: "Diabetes", Description: "Blood sugar control medication", DosageOptions: "500mg,850mg,1000mg", CommonQuantities: "30,60,90", RequiresPrescription: true, UnitType: "tablets", AddedBy: "system"},
		{ID: "med-009", Name: "Insulin (Rapid-Acting)", Category: "Diabetes", Description: "Fast-acting insulin for blood sugar management", DosageOptions: "100 units/ml", CommonQuantities: "1,2,3", RequiresPrescription: true, UnitType: "units", AddedBy: "system"},
		{ID: "med-010", Name: "Albuterol Inhaler", Category: "Respiratory", Description: "Bronchodilator for asthma relief", DosageOptions: "90mcg per puff", CommonQuantities: "1,2", RequiresPrescription: true, UnitType: "doses", AddedBy: "system"},
		{ID: "med-011", Name: "Cetirizine", Category: "Allergy", Description: "Antihistamine for allergy relief", DosageOptions: "5mg,10mg", CommonQuantities: "30,60,90", UnitType: "tablets", AddedBy: "system"},
		{ID: "med-012", Name: "EpiPen", Category: "Emergency", Description: "Emergency epinephrine auto-injector", DosageOptions: "0.3mg", CommonQuantities: "1,2", RequiresPrescription: true, UnitType: "units", AddedBy: "system"},
	}
}

// Hospitals returns the demo hospital registry.
func Hospitals() []models.Hospital {
	return []models.Hospital{
		{ID: "hospital-1", Name: "Beijing Union Medical College Hospital", Address: "1 Shuaifuyuan Wangfujing, Dongcheng District, Beijing", Type: "public", Specialties: "Internal Medicine,Cardiology,Surgery,Neurology,Oncology"},
		{ID: "hospital-2", Name: "Beijing Friendship Hospital", Address: "95 Yongan Road, Xicheng District, Beijing", Type: "public", Specialties: "Internal Medicine,Pediatrics,Endocrinology"},
		{ID: "hospital-3", Name: "Beijing International Medical Center", Address: "50 Liangmaqiao Road, Chaoyang District, Beijing", Type: "private", Specialties: "Family Medicine,Internal Medicine,Pediatrics"},
	}
}

// Doctors returns the demo doctor registry.
func Doctors() []models.Doctor {
	return []models.Doctor{
		{ID: "doctor-1", Name: "Wei Chen", Specialty: "Internal Medicine", HospitalID: "hospital-1", Experience: 15, Rating: 4.8, Patients: 320},
		{ID: "doctor-2", Name: "Li Zhang", Specialty: "Cardiology", HospitalID: "hospital-1", Experience: 12, Rating: 4.9, Patients: 280},
		{ID: "doctor-3", Name: "Ming Wang", Specialty: "Family Medicine", HospitalID: "hospital-2", Experience: 8, Rating: 4.6, Patients: 410},
		{ID: "doctor-4", Name: "Yan Liu", Specialty: "Endocrinology", HospitalID: "hospital-2", Experience: 10, Rating: 4.7, Patients: 230},
		{ID: "doctor-5", Name: "John Smith", Specialty: "Internal Medicine", HospitalID: "hospital-3", Experience: 20, Rating: 4.9, Patients: 190},
		{ID: "doctor-6", Name: "Sarah Johnson", Specialty: "Pediatrics", HospitalID: "hospital-3", Experience: 9, Rating: 4.5, Patients: 350},
	}
}
