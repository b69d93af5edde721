package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"healthpredict/ml"
)

// DatasetFormat 根据表头识别的CSV格式
type DatasetFormat string

const (
	// FormatPrepared 四个特征加上 0/1 的 smoking 和 drinking 列
	FormatPrepared DatasetFormat = "prepared"
	// FormatScreening 原始体检导出数据：BMI 由身高(cm)和体重(kg)计算，
	// SMK_stat_type_cd 为 3 表示当前吸烟，DRK_YN 为 Y/N
	FormatScreening DatasetFormat = "screening"
)

var (
	preparedColumns  = []string{"age", "BMI", "gamma_GTP", "hemoglobin", "smoking", "drinking"}
	screeningColumns = []string{"age", "height", "weight", "gamma_GTP", "hemoglobin", "SMK_stat_type_cd", "DRK_YN"}
)

// LoadDataset 从文件读取CSV训练数据
func LoadDataset(path string) (ml.Dataset, DatasetFormat, error) {
	file, err := os.Open(path)
	if err != nil {
		return ml.Dataset{}, "", err
	}
	defer file.Close()
	return ReadDataset(file)
}

// ReadDataset 解析任一支持格式的CSV数据流
func ReadDataset(r io.Reader) (ml.Dataset, DatasetFormat, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return ml.Dataset{}, "", fmt.Errorf("read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}

	var format DatasetFormat
	switch {
	case hasColumns(columns, preparedColumns):
		format = FormatPrepared
	case hasColumns(columns, screeningColumns):
		format = FormatScreening
	default:
		return ml.Dataset{}, "", fmt.Errorf("unrecognised header %v", header)
	}

	var data ml.Dataset
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return ml.Dataset{}, "", fmt.Errorf("line %d: %w", line, err)
		}
		row, smoking, drinking, err := parseRecord(format, columns, record)
		if err != nil {
			return ml.Dataset{}, "", fmt.Errorf("line %d: %w", line, err)
		}
		data.Append(row, smoking, drinking)
	}
	if data.Len() == 0 {
		return ml.Dataset{}, "", errors.New("dataset has no rows")
	}
	return data, format, nil
}

func parseRecord(format DatasetFormat, columns map[string]int, record []string) (ml.FeatureRow, int, int, error) {
	field := func(name string) string {
		return strings.TrimSpace(record[columns[name]])
	}
	number := func(name string) (float64, error) {
		value, err := strconv.ParseFloat(field(name), 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
		return value, nil
	}

	var row ml.FeatureRow
	var err error
	if row.Age, err = number("age"); err != nil {
		return row, 0, 0, err
	}
	if row.GammaGTP, err = number("gamma_GTP"); err != nil {
		return row, 0, 0, err
	}
	if row.Hemoglobin, err = number("hemoglobin"); err != nil {
		return row, 0, 0, err
	}

	switch format {
	case FormatPrepared:
		if row.BMI, err = number("BMI"); err != nil {
			return row, 0, 0, err
		}
		smoking, err := binaryLabel(field("smoking"))
		if err != nil {
			return row, 0, 0, fmt.Errorf("smoking: %w", err)
		}
		drinking, err := binaryLabel(field("drinking"))
		if err != nil {
			return row, 0, 0, fmt.Errorf("drinking: %w", err)
		}
		return row, smoking, drinking, nil

	default:
		height, err := number("height")
		if err != nil {
			return row, 0, 0, err
		}
		weight, err := number("weight")
		if err != nil {
			return row, 0, 0, err
		}
		if height <= 0 {
			return row, 0, 0, errors.New("height must be positive")
		}
		meters := height / 100
		row.BMI = weight / (meters * meters)

		stat, err := number("SMK_stat_type_cd")
		if err != nil {
			return row, 0, 0, err
		}
		smoking := 0
		if stat == 3 {
			smoking = 1
		}
		drinking, err := binaryLabel(field("DRK_YN"))
		if err != nil {
			return row, 0, 0, fmt.Errorf("DRK_YN: %w", err)
		}
		return row, smoking, drinking, nil
	}
}

func binaryLabel(value string) (int, error) {
	switch strings.ToUpper(value) {
	case "1", "1.0", "Y", "YES", "TRUE":
		return 1, nil
	case "0", "0.0", "N", "NO", "FALSE":
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot read %q as a binary label", value)
	}
}

func hasColumns(columns map[string]int, required []string) bool {
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			return false
		}
	}
	return true
}
