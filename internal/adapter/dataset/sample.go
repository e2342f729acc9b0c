// Package dataset provides molecule dataset sources: a built-in sample set
// and a CSV loader that discovers files with glob patterns.
package dataset

import "molsim/internal/domain"

// SampleMolecules is the built-in demo dataset: canonical SMILES with names
// and coarse categories.
var SampleMolecules = []domain.Molecule{
	{SMILES: "CCO", Name: "Ethanol", Category: "alcohol"},
	{SMILES: "CC(=O)O", Name: "Acetic acid", Category: "carboxylic acid"},
	{SMILES: "c1ccccc1", Name: "Benzene", Category: "aromatic"},
	{SMILES: "CC(C)O", Name: "Isopropanol", Category: "alcohol"},
	{SMILES: "CCN(CC)CC", Name: "Triethylamine", Category: "amine"},
	{SMILES: "c1ccc(cc1)O", Name: "Phenol", Category: "aromatic"},
	{SMILES: "CC(=O)OC1=CC=CC=C1C(=O)O", Name: "Aspirin", Category: "pharmaceutical"},
	{SMILES: "CN1C=NC2=C1C(=O)N(C(=O)N2C)C", Name: "Caffeine", Category: "alkaloid"},
	{SMILES: "CC(C)(C)OC(=O)NC1CCC(CC1)O", Name: "Boc-protected cyclohexanol", Category: "protected intermediate"},
	{SMILES: "CCCCCCCCCCCCCCC(=O)O", Name: "Palmitic acid", Category: "fatty acid"},
	{SMILES: "c1ccc2c(c1)cccn2", Name: "Quinoline", Category: "heterocycle"},
	{SMILES: "CC1=CC=C(C=C1)C", Name: "p-Xylene", Category: "aromatic"},
	{SMILES: "CCCCO", Name: "Butanol", Category: "alcohol"},
	{SMILES: "CC(C)C", Name: "Isobutane", Category: "alkane"},
	{SMILES: "c1ccc(cc1)N", Name: "Aniline", Category: "amine"},
	{SMILES: "CC(=O)N", Name: "Acetamide", Category: "amide"},
	{SMILES: "CCCCCCCCCCCCCCCCCC(=O)O", Name: "Stearic acid", Category: "fatty acid"},
	{SMILES: "c1ccc(cc1)C(=O)O", Name: "Benzoic acid", Category: "carboxylic acid"},
	{SMILES: "CCc1ccccc1", Name: "Ethylbenzene", Category: "aromatic"},
	{SMILES: "CC(C)CC(C)(C)C", Name: "2,2,4-Trimethylpentane", Category: "alkane"},
}
