package utils

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"

	"github.com/iancoleman/strcase"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

func DecodeSnakeCase(input interface{}) (map[string]interface{}, error) {
	output := map[string]interface{}{}
	if err := mapstructure.Decode(input, &output); err != nil {
		return nil, errors.Wrap(err, "decode properties")
	}
	newOut := make(map[string]interface{}, len(output))
	for k, v := range output {
		newOut[strcase.ToSnake(k)] = v
	}
	return newOut, nil
}

func WriteAsJsonFile(v interface{}, filePath string) error {
	base := path.Base(filePath)
	dirPath := filePath[:len(filePath)-len(base)]
	if dirPath != "" {
		if err := os.MkdirAll(dirPath, os.ModePerm); err != nil {
			return errors.Wrapf(err, "create %s", dirPath)
		}
	}

	bytes, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal json")
	}

	if err = os.WriteFile(filePath, bytes, 0644); err != nil {
		return errors.Wrapf(err, "write %s", filePath)
	}

	return nil
}

func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// ReadJsonFile decodes a local file, or the body of an http url, into dest.
func ReadJsonFile(filePath string, dest interface{}) error {
	var bytes []byte
	var err error
	if FileExists(filePath) {
		bytes, err = os.ReadFile(filePath)
		if err != nil {
			return errors.Wrapf(err, "read %s", filePath)
		}
	} else {
		u, err := url.ParseRequestURI(filePath)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return errors.Errorf("%s is neither a file nor an http url", filePath)
		}
		resp, err := http.Get(u.String())
		if err != nil {
			return errors.Wrapf(err, "GET %s", filePath)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return errors.Errorf("unexpected http GET status: %s", resp.Status)
		}
		bytes, err = io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrapf(err, "read body of %s", filePath)
		}
	}

	if err = json.Unmarshal(bytes, dest); err != nil {
		return errors.Wrapf(err, "decode %s", filePath)
	}
	return nil
}
