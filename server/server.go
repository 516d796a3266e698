// Package server contains misc server utilities.
package server

import (
	"encoding/json"
	"fmt"
	"go/types"
	"log"
	"net/http"
	"os"
	"path/filepath"
)

// ReplyWithFile replies to the client request by serving the given file name
func ReplyWithFile(w http.ResponseWriter, r *http.Request, fn string, fldr string) {
	filePath, err := filepath.Abs(filepath.Join(fldr, fn))
	if err != nil {
		fstr := fmt.Sprintf("unable to compute abspath of file %s %s %s", fldr, fn, err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusInternalServerError)
		return
	}

	f, err := os.Open(filePath)
	if err != nil {
		fstr := fmt.Sprintf("source file missing %s", filePath)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusNotFound)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		fstr := fmt.Sprintf("error retrieving source file stats %s", err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusNotFound)
		return
	}
	// read some stuff to set the headers appropriately
	http.ServeContent(w, r, fn, stat.ModTime(), f)
}

// FloatT is a struct with a single float64 field, F64
type FloatT struct {
	F64 float64 `json:"f64"`
}

// IntT is a struct with a single int field, Int
type IntT struct {
	Int int `json:"int"`
}

// StrT is a struct with a single string field, Str
type StrT struct {
	Str string `json:"str"`
}

// BoolT is a struct with a single bool field, Bool
type BoolT struct {
	Bool bool `json:"bool"`
}

// HumanPayload is a struct holding one value of a basic type, selected by T.
// It is encoded to the matching FloatT, IntT, StrT or BoolT form.
type HumanPayload struct {
	// T is the kind of value held
	T types.BasicKind

	Float  float64
	Int    int
	String string
	Bool   bool
}

// value returns the JSON form of the payload
func (hp HumanPayload) value() (interface{}, error) {
	switch hp.T {
	case types.Float64, types.Float32:
		return FloatT{F64: hp.Float}, nil
	case types.Int, types.Int64, types.Int32, types.Uint16:
		return IntT{Int: hp.Int}, nil
	case types.String:
		return StrT{Str: hp.String}, nil
	case types.Bool:
		return BoolT{Bool: hp.Bool}, nil
	default:
		return nil, fmt.Errorf("server: payload of unsupported kind %d", hp.T)
	}
}

// EncodeAndRespond Encodes the data to JSON and writes to w.
// logs errors and replies with http.Error // status 500 on error
func (hp HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	v, err := hp.value()
	if err != nil {
		log.Println(err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	err = json.NewEncoder(w).Encode(v)
	if err != nil {
		fstr := fmt.Sprintf("error encoding payload to json %q", err)
		log.Println(fstr)
	}
}

// WriteJSON encodes v to w with status 200, or replies 500 if it cannot be encoded
func WriteJSON(w http.ResponseWriter, v interface{}) {
	buf, err := json.Marshal(v)
	if err != nil {
		fstr := fmt.Sprintf("error encoding data to json %q", err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(append(buf, '\n'))
}
