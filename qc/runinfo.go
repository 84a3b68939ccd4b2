package qc

import (
	"encoding/xml"
	"fmt"
	"io"
)

// RunInfo is the parsed RunInfo.xml run descriptor written by the instrument.
type RunInfo struct {
	ID             string         `json:"id" yaml:"id"`
	Number         string         `json:"number" yaml:"number"`
	Flowcell       string         `json:"flowcell" yaml:"flowcell"`
	Instrument     string         `json:"instrument" yaml:"instrument"`
	Date           string         `json:"date" yaml:"date"`
	Reads          []ReadInfo     `json:"reads" yaml:"reads"`
	FlowcellLayout FlowcellLayout `json:"flowcell_layout" yaml:"flowcell_layout"`
}

// ReadInfo describes one configured read of the run.
type ReadInfo struct {
	Number        string `xml:"Number,attr" json:"number" yaml:"number"`
	NumCycles     string `xml:"NumCycles,attr" json:"num_cycles" yaml:"num_cycles"`
	IsIndexedRead string `xml:"IsIndexedRead,attr" json:"is_indexed_read" yaml:"is_indexed_read"`
}

// FlowcellLayout describes the physical flowcell geometry.
type FlowcellLayout struct {
	LaneCount    string `xml:"LaneCount,attr" json:"lane_count" yaml:"lane_count"`
	SurfaceCount string `xml:"SurfaceCount,attr" json:"surface_count,omitempty" yaml:"surface_count,omitempty"`
	SwathCount   string `xml:"SwathCount,attr" json:"swath_count,omitempty" yaml:"swath_count,omitempty"`
	TileCount    string `xml:"TileCount,attr" json:"tile_count,omitempty" yaml:"tile_count,omitempty"`
}

type runInfoXML struct {
	Run struct {
		ID             string         `xml:"Id,attr"`
		Number         string         `xml:"Number,attr"`
		Flowcell       string         `xml:"Flowcell"`
		Instrument     string         `xml:"Instrument"`
		Date           string         `xml:"Date"`
		Reads          []ReadInfo     `xml:"Reads>Read"`
		FlowcellLayout FlowcellLayout `xml:"FlowcellLayout"`
	} `xml:"Run"`
}

// ParseRunInfo parses a RunInfo.xml document.
func ParseRunInfo(r io.Reader) (*RunInfo, error) {
	var doc runInfoXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing RunInfo.xml: %w", err)
	}
	if doc.Run.ID == "" {
		return nil, fmt.Errorf("RunInfo.xml has no Run element")
	}
	return &RunInfo{
		ID:             doc.Run.ID,
		Number:         doc.Run.Number,
		Flowcell:       doc.Run.Flowcell,
		Instrument:     doc.Run.Instrument,
		Date:           doc.Run.Date,
		Reads:          doc.Run.Reads,
		FlowcellLayout: doc.Run.FlowcellLayout,
	}, nil
}
